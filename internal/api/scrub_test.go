package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/keyseek/internal/errors"
)

func dialScrub(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/scrub"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func scrubOnce(t *testing.T, conn *websocket.Conn, req interface{}) ScrubResponse {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var resp ScrubResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestScrub(t *testing.T) {
	router := setupRouter(t, 8)
	srv := httptest.NewServer(router)
	defer srv.Close()

	sess := openSession(t, router, `{"path":"clip.h264"}`)
	conn := dialScrub(t, srv, sess.ID)

	tests := []struct {
		name       string
		req        string
		wantOffset int64
		wantErr    errors.ErrorType
	}{
		{"keyframe", `{"seq":1,"t":1}`, 30 * 14, ""},
		{"between keyframes", `{"seq":2,"t":2.01}`, 60 * 14, ""},
		{"start", `{"seq":3,"t":0}`, 0, ""},
		{"negative", `{"seq":4,"t":-1}`, 0, errors.ErrorTypeValidation},
		{"beyond end", `{"seq":5,"t":1e9}`, 0, errors.ErrorTypeOutOfRange},
		{"missing t", `{"seq":6}`, 0, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.req)))
			var resp ScrubResponse
			require.NoError(t, conn.ReadJSON(&resp))

			if tt.wantErr != "" {
				require.NotNil(t, resp.Error)
				assert.Nil(t, resp.Result)
				assert.Equal(t, tt.wantErr, resp.Error.Type)
				return
			}
			require.Nil(t, resp.Error)
			require.NotNil(t, resp.Result)
			assert.Equal(t, tt.wantOffset, resp.Result.KeyframeOffset)
		})
	}
}

func TestScrub_EchoesSequence(t *testing.T) {
	router := setupRouter(t, 8)
	srv := httptest.NewServer(router)
	defer srv.Close()

	sess := openSession(t, router, `{"path":"clip.h264"}`)
	conn := dialScrub(t, srv, sess.ID)

	for seq := int64(10); seq < 15; seq++ {
		ts := float64(seq - 10)
		resp := scrubOnce(t, conn, ScrubRequest{Seq: seq, T: &ts})
		assert.Equal(t, seq, resp.Seq)
		require.NotNil(t, resp.Result)
		assert.Equal(t, ts, resp.Result.ActualTime)
	}
}

func TestScrub_UnknownSession(t *testing.T) {
	router := setupRouter(t, 8)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/missing/scrub"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScrub_SessionClosedMidStream(t *testing.T) {
	router := setupRouter(t, 8)
	srv := httptest.NewServer(router)
	defer srv.Close()

	sess := openSession(t, router, `{"path":"clip.h264"}`)
	conn := dialScrub(t, srv, sess.ID)

	ts := 1.0
	require.Nil(t, scrubOnce(t, conn, ScrubRequest{Seq: 1, T: &ts}).Error)

	require.Equal(t, http.StatusNoContent, do(t, router, "DELETE", "/api/v1/sessions/"+sess.ID, "").Code)

	resp := scrubOnce(t, conn, ScrubRequest{Seq: 2, T: &ts})
	require.NotNil(t, resp.Error)
	assert.Equal(t, errors.ErrorTypeNotFound, resp.Error.Type)

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}
