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

	"github.com/banshee-data/ergoscan/internal/measure"
)

func dialSession(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + id
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestSessionSocket_RepliesWithAverages(t *testing.T) {
	s := newTestServer(t, false)
	h, err := s.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	sess := s.sessions.Start("ws-user")
	conn := dialSession(t, srv, sess.ID())

	for f := int64(0); f < 3; f++ {
		require.NoError(t, conn.WriteJSON(socketMessage{Measurements: heightFrame(f, 160+float64(f))}))
		var reply averagesMessage
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, f+1, reply.Info.Frames)
		assert.InDelta(t, 160+float64(f)/2, reply.Averages[measure.Height], 1e-9)
	}

	frame := socketMessage{Landmarks: standingLandmarks(), Width: 640, Height: 480, FrameID: 3, Timestamp: 0.1}
	require.NoError(t, conn.WriteJSON(frame))
	var reply averagesMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, int64(4), reply.Info.Frames)
	assert.Contains(t, reply.Averages, measure.ShoulderWidth)
}

func TestSessionSocket_ErrorsKeepConnection(t *testing.T) {
	s := newTestServer(t, false)
	h, err := s.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	sess := s.sessions.Start("")
	conn := dialSession(t, srv, sess.ID())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var errReply socketError
	require.NoError(t, conn.ReadJSON(&errReply))
	assert.Contains(t, errReply.Error, "invalid message")

	bad := heightFrame(0, 170)
	bad[0].Depth = 0
	require.NoError(t, conn.WriteJSON(socketMessage{Measurements: bad}))
	require.NoError(t, conn.ReadJSON(&errReply))
	assert.Contains(t, errReply.Error, "depth")

	require.NoError(t, conn.WriteJSON(socketMessage{Measurements: heightFrame(0, 170)}))
	var reply averagesMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.InDelta(t, 170.0, reply.Averages[measure.Height], 1e-9)
}

func TestSessionSocket_UnknownSession(t *testing.T) {
	s := newTestServer(t, false)
	h, err := s.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
