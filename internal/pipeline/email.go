// =============================================================================
// email.go - メール送信モジュール
// =============================================================================
//
// このファイルはSMTP（STARTTLS）を使用してトレンドチャートを送信する機能を提供します。
//
// =============================================================================
// 【処理の流れ】
// =============================================================================
//
// 受信者ごとに以下を繰り返す（複数宛先をまとめた1通ではなく、1人1通）:
//  1. multipart/mixed メッセージを構築（本文 + PNG添付）
//  2. SMTPセッションを開き、STARTTLS後にPLAIN認証
//  3. 1通送信してセッションを閉じる
//
// 【失敗時の扱い】
//
//	ある受信者への送信が失敗しても残りの受信者への送信は続ける。
//	受信者ごとの結果を RecipientResult として返し、
//	失敗があれば DeliveryError でまとめてエラーにする。
//
// =============================================================================
// 【必要な環境変数】
// =============================================================================
//
//	EMAIL_FROM     - 送信元メールアドレス（SMTP認証ユーザーを兼ねる）
//	EMAIL_PASSWORD - SMTP認証パスワード（アプリパスワード推奨）
//	EMAIL_TO       - 送信先メールアドレス（カンマ区切りで複数可）
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// 設定・構造体
// =============================================================================

// sendMailFunc は smtp.SendMail と同じシグネチャ（テストで差し替える）
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Notifier はチャートを受信者に送信するインターフェース
type Notifier interface {
	SendChart(ctx context.Context, attachmentPath string) []RecipientResult
}

// RecipientResult は受信者1人分の送信結果
type RecipientResult struct {
	Recipient string
	Err       error
}

// DeliveryError は1人以上への送信失敗をまとめたエラー
type DeliveryError struct {
	Failed []RecipientResult
	Total  int
}

func (e *DeliveryError) Error() string {
	addrs := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		addrs[i] = r.Recipient
	}
	return fmt.Sprintf("email delivery failed for %d of %d recipient(s): %s",
		len(e.Failed), e.Total, strings.Join(addrs, ", "))
}

// Unwrap は個々の送信エラーを返す（errors.Is / errors.As 用）
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, r := range e.Failed {
		errs[i] = r.Err
	}
	return errs
}

// DeliveryErr は結果に失敗が含まれていれば *DeliveryError を返す
func DeliveryErr(results []RecipientResult) error {
	var failed []RecipientResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &DeliveryError{Failed: failed, Total: len(results)}
}

// EmailSender はメール送信を担当する
type EmailSender struct {
	config   EmailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

// =============================================================================
// 初期化
// =============================================================================

// NewEmailSender は新しいメール送信者を作成する
func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	if cfg.From == "" {
		return nil, errors.New("EMAIL_FROM is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("EMAIL_PASSWORD is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("EMAIL_TO is required")
	}

	return &EmailSender{
		config:   cfg,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

// =============================================================================
// メール送信
// =============================================================================

// SendChart はチャート画像を添付して受信者ごとに1通ずつ送信する
//
// 添付ファイルが読めない場合は全受信者の結果がそのエラーになる。
func (es *EmailSender) SendChart(ctx context.Context, attachmentPath string) []RecipientResult {
	results := make([]RecipientResult, 0, len(es.config.To))

	attachment, err := os.ReadFile(attachmentPath)
	if err != nil {
		err = fmt.Errorf("read attachment: %w", err)
		for _, to := range es.config.To {
			results = append(results, RecipientResult{Recipient: to, Err: err})
		}
		return results
	}

	filename := filepath.Base(attachmentPath)
	for _, to := range es.config.To {
		if err := ctx.Err(); err != nil {
			results = append(results, RecipientResult{Recipient: to, Err: err})
			continue
		}

		msg, err := es.buildEmailMessage(to, filename, attachment)
		if err == nil {
			err = es.send(to, msg)
		}
		if err != nil {
			warnf("Email to %s failed: %v", to, err)
		} else {
			infof("Email sent to %s", to)
		}
		results = append(results, RecipientResult{Recipient: to, Err: err})
	}
	return results
}

// =============================================================================
// メールメッセージ構築
// =============================================================================

// buildEmailMessage はRFC 5322 / MIME準拠のメッセージを構築する
//
// 【構造】
//
//	From / To / Subject / Date / MIME-Version
//	Content-Type: multipart/mixed; boundary=...
//	  ├─ text/plain; charset=UTF-8       （本文）
//	  └─ application/octet-stream        （base64、Content-Disposition: attachment）
func (es *EmailSender) buildEmailMessage(to, filename string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", es.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", es.config.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", es.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n") // ヘッダーと本文の区切り

	// 本文
	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	bodyHeader.Set("Content-Transfer-Encoding", "8bit")
	bw, err := mw.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := bw.Write([]byte(es.config.Body + "\r\n")); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	// 添付ファイル
	attHeader := textproto.MIMEHeader{}
	attHeader.Set("Content-Type", "application/octet-stream")
	attHeader.Set("Content-Transfer-Encoding", "base64")
	attHeader.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	aw, err := mw.CreatePart(attHeader)
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := aw.Write(base64Lines(attachment)); err != nil {
		return nil, fmt.Errorf("write attachment part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), nil
}

// base64Lines はRFC 2045に従い76文字ごとに改行したbase64を返す
func base64Lines(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString("\r\n")
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	out.WriteString("\r\n")
	return out.Bytes()
}

// =============================================================================
// 送信
// =============================================================================

// send は1人の受信者に対してSMTPセッションを開いて1通送信する
//
// 【SMTP認証】
//
//	smtp.SendMail はサーバーがSTARTTLSに対応していればTLSに切り替えてから
//	PLAIN認証を行う。セッションは送信ごとに開いて閉じる。
func (es *EmailSender) send(to string, msg []byte) error {
	auth := smtp.PlainAuth("", es.config.From, es.config.Password, es.config.SMTPHost)
	addr := es.config.SMTPHost + ":" + es.config.SMTPPort

	if err := es.sendMail(addr, auth, es.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}
	return nil
}
