package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/provider"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/storage/memory"
)

type stubSender struct {
	err error
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(m *gomail.Message) error { return s.err }

type stubResolver struct {
	sender provider.Sender
	err    error
}

func (r *stubResolver) Resolve() (provider.Sender, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.sender, nil
}

func newTestRouter(t *testing.T, resolver provider.Resolver) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	mails := service.NewMailService(store, resolver, zap.NewNop())

	cfg := &config.Config{
		Environment: "development",
		Outbound: config.OutboundConfig{
			SenderAddress: "relay@example.com",
			SenderName:    "Relay",
		},
		Webhook: config.WebhookConfig{
			FromField:    "from",
			ToField:      "to",
			SubjectField: "subject",
			TextField:    "body-plain",
			HTMLField:    "body-html",
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	router := NewRouter(RouterDependencies{
		Config:      cfg,
		MailService: mails,
		Store:       store,
		Logger:      zap.NewNop(),
	})
	return router, store
}

func TestWebhookHandler_ReceiveInbound(t *testing.T) {
	t.Run("表单载荷入库", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		form := url.Values{}
		form.Set("from", "Bob <bob@y.com>")
		form.Set("to", "alice@z.com")
		form.Set("subject", "Hi")
		form.Set("body-plain", "hello")

		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/inbound", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		mails, err := store.ListInbox("alice@z.com")
		require.NoError(t, err)
		require.Len(t, mails, 1)
		assert.Equal(t, "bob@y.com", mails[0].From)
		assert.Equal(t, "Bob", mails[0].FromName)
		assert.Equal(t, "alice@z.com", mails[0].To)
		assert.Equal(t, "Hi", mails[0].Subject)
		assert.Equal(t, "hello", mails[0].Text)
		assert.Equal(t, domain.FolderInbox, mails[0].Folder)
		assert.False(t, mails[0].IsRead)
	})

	t.Run("JSON 载荷入库", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		body, _ := json.Marshal(map[string]string{
			"from":      "carol@z.com",
			"to":        "alice@z.com",
			"subject":   "Json hello",
			"body-html": "<p>hi</p>",
		})

		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/inbound", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		mails, err := store.ListInbox("alice@z.com")
		require.NoError(t, err)
		require.Len(t, mails, 1)
		assert.Equal(t, "carol@z.com", mails[0].From)
		assert.Equal(t, "<p>hi</p>", mails[0].HTML)
		assert.Empty(t, mails[0].Text)
	})

	t.Run("缺主题使用占位值", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		form := url.Values{}
		form.Set("from", "bob@y.com")
		form.Set("to", "alice@z.com")

		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/inbound", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		mails, err := store.ListInbox("alice@z.com")
		require.NoError(t, err)
		require.Len(t, mails, 1)
		assert.Equal(t, domain.DefaultSubject, mails[0].Subject)
	})

	t.Run("缺收发件人返回 400", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		form := url.Values{}
		form.Set("from", "bob@y.com")

		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/inbound", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		mails, err := store.ListInbox("")
		require.NoError(t, err)
		assert.Empty(t, mails)
	})
}

func TestMailHandler_Send(t *testing.T) {
	sendJSON := func(router *gin.Engine, payload map[string]string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/v1/mail/send", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeResult := func(t *testing.T, w *httptest.ResponseRecorder) service.SendResult {
		t.Helper()
		var resp struct {
			Code int                `json:"code"`
			Data service.SendResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Data
	}

	t.Run("投递成功返回 sent", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		w := sendJSON(router, map[string]string{
			"to":      "bob@y.com",
			"subject": "Hi",
			"text":    "hello",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		result := decodeResult(t, w)
		assert.Equal(t, service.StatusSent, result.Status)
		assert.NotEmpty(t, result.ID)

		mails, err := store.ListSent("relay@example.com")
		require.NoError(t, err)
		assert.Len(t, mails, 1)
	})

	t.Run("投递失败仍返回 200 与 saved", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{err: errors.New("connection refused")}})

		w := sendJSON(router, map[string]string{
			"to":   "bob@y.com",
			"text": "hello",
		})

		assert.Equal(t, http.StatusOK, w.Code)
		result := decodeResult(t, w)
		assert.Equal(t, service.StatusSaved, result.Status)

		// 返回的 ID 指向已入库记录
		stored, err := store.GetMail(result.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.FolderSent, stored.Folder)
	})

	t.Run("请求可覆盖发件身份", func(t *testing.T) {
		router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		w := sendJSON(router, map[string]string{
			"to":       "bob@y.com",
			"from":     "alice@z.com",
			"fromName": "Alice",
			"text":     "hello",
		})

		assert.Equal(t, http.StatusOK, w.Code)

		mails, err := store.ListSent("alice@z.com")
		require.NoError(t, err)
		require.Len(t, mails, 1)
		assert.Equal(t, "Alice", mails[0].FromName)
	})

	t.Run("缺收件人返回 400", func(t *testing.T) {
		router, _ := newTestRouter(t, &stubResolver{sender: &stubSender{}})

		w := sendJSON(router, map[string]string{"text": "hello"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMailHandler_FolderViews(t *testing.T) {
	router, store := newTestRouter(t, &stubResolver{sender: &stubSender{}})

	_ = store.SaveMail(&domain.Mail{
		ID: "in-1", From: "bob@y.com", To: "alice@z.com",
		Subject: "hi", Folder: domain.FolderInbox,
	})

	t.Run("收件箱查询", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/mail/inbox?address=alice@z.com", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "in-1")
	})

	t.Run("缺 address 参数返回 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/mail/inbox", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("按 ID 获取邮件", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/mail/in-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "bob@y.com")
	})

	t.Run("不存在的邮件返回 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/mail/nonexistent", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
