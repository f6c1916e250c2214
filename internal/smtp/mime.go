package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ParsedMail 表示解析后的邮件内容。
//
// 中继只需要定位正文与信头，附件部分在解析时直接跳过。
type ParsedMail struct {
	From    string // 原始 From 头，显示名拆分交给上层
	To      string // 原始 To 头的文本表示
	Subject string
	Text    string
	HTML    string
}

// ParseMail 解析一封完整的 MIME 邮件。
func ParseMail(raw []byte) (*ParsedMail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedMail{
		From:    decodeHeader(msg.Header.Get("From")),
		To:      decodeHeader(msg.Header.Get("To")),
		Subject: decodeHeader(msg.Header.Get("Subject")),
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		// 没有 Content-Type 或解析失败，当作纯文本处理
		body, _ := io.ReadAll(msg.Body)
		parsed.Text = string(body)
		return parsed, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}
		if err := walkParts(multipart.NewReader(msg.Body, boundary), parsed); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
		return parsed, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if strings.HasPrefix(mediaType, "text/html") {
		parsed.HTML = body
	} else {
		parsed.Text = body
	}

	return parsed, nil
}

// walkParts 递归遍历多部分邮件，收集首个纯文本与 HTML 正文。
func walkParts(mr *multipart.Reader, parsed *ParsedMail) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		// 附件与内联资源跳过，记录里只保留正文
		if disposition := part.Header.Get("Content-Disposition"); disposition != "" {
			dispType, _, _ := mime.ParseMediaType(disposition)
			if dispType == "attachment" || dispType == "inline" {
				continue
			}
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if boundary := params["boundary"]; boundary != "" {
				if err := walkParts(multipart.NewReader(part, boundary), parsed); err != nil {
					return err
				}
			}
			continue
		}

		body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"), params["charset"])
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(mediaType, "text/html"):
			if parsed.HTML == "" {
				parsed.HTML = body
			}
		case strings.HasPrefix(mediaType, "text/plain"):
			if parsed.Text == "" {
				parsed.Text = body
			}
		}
	}

	return nil
}

// decodeBody 按传输编码与字符集解码邮件体。
func decodeBody(reader io.Reader, transferEncoding, charset string) (string, error) {
	var decoded io.Reader = reader
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		decoded = base64.NewDecoder(base64.StdEncoding, reader)
	case "quoted-printable":
		decoded = quotedprintable.NewReader(reader)
	}

	body, err := io.ReadAll(decoded)
	if err != nil {
		return "", err
	}

	// 非 UTF-8 字符集转换，转换失败时保留原始字节
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset != "" && charset != "utf-8" && charset != "us-ascii" {
		if enc, err := htmlindex.Get(charset); err == nil {
			if converted, _, err := transform.Bytes(enc.NewDecoder(), body); err == nil {
				body = converted
			}
		}
	}

	return string(body), nil
}

// decodeHeader 解码 RFC 2047 编码的信头。
func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
