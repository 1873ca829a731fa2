package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGraph(t *testing.T, handler http.HandlerFunc) *Graph {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Graph{
		log:     zap.NewNop(),
		client:  server.Client(),
		baseURL: server.URL,
		sender:  "ops@example.com",
	}
}

func TestGraphSendPayload(t *testing.T) {
	var captured graphSendMailRequest
	var path string

	g := testGraph(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusAccepted)
	})

	result := g.Send(context.Background(), Message{
		To:       "alice@example.com, bob@example.com",
		Cc:       "carol@example.com",
		Subject:  "Hello",
		BodyHTML: "<p>Hi</p>",
		Attachments: []Attachment{
			{Name: "report.pdf", ContentType: "application/pdf", Data: []byte("pdf-bytes")},
			{Name: "logo.png", ContentType: "image/png", Data: []byte("png-bytes"), Inline: true, CID: "logo"},
		},
	})

	require.True(t, result.OK)
	require.Equal(t, "/users/ops@example.com/sendMail", path)
	require.True(t, captured.SaveToSentItems)
	require.Equal(t, "Hello", captured.Message.Subject)
	require.Equal(t, "HTML", captured.Message.Body.ContentType)
	require.Len(t, captured.Message.ToRecipients, 2)
	require.Equal(t, "alice@example.com", captured.Message.ToRecipients[0].EmailAddress.Address)
	require.Len(t, captured.Message.CcRecipients, 1)
	require.Empty(t, captured.Message.BccRecipients)
	require.Len(t, captured.Message.Attachments, 2)
	require.Equal(t, "#microsoft.graph.fileAttachment", captured.Message.Attachments[0].ODataType)
	require.False(t, captured.Message.Attachments[0].IsInline)
	require.True(t, captured.Message.Attachments[1].IsInline)
	require.Equal(t, "logo", captured.Message.Attachments[1].ContentID)
}

func TestGraphSendRejectedStatus(t *testing.T) {
	g := testGraph(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"ErrorSendAsDenied"}}`, http.StatusForbidden)
	})

	result := g.Send(context.Background(), Message{To: "alice@example.com"})
	require.False(t, result.OK)
	require.Contains(t, result.Detail, "403")
}

func TestGraphSendTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	g := &Graph{
		log:     zap.NewNop(),
		client:  server.Client(),
		baseURL: server.URL,
		sender:  "ops@example.com",
	}
	server.Close()

	result := g.Send(context.Background(), Message{To: "alice@example.com"})
	require.False(t, result.OK)
}

func TestSplitAddresses(t *testing.T) {
	require.Equal(t, []string{"a@x.com", "b@x.com"}, splitAddresses("a@x.com; b@x.com"))
	require.Equal(t, []string{"a@x.com"}, splitAddresses(" a@x.com ,"))
	require.Empty(t, splitAddresses("  "))
}
