package http

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/lingua-lms/internal/domain"
	infra "github.com/pot-code/lingua-lms/internal/infrastructure"
	"github.com/pot-code/lingua-lms/internal/infrastructure/auth"
	"github.com/pot-code/lingua-lms/internal/infrastructure/logging"
	"github.com/pot-code/lingua-lms/internal/player"
	"go.uber.org/zap"
)

// WSProgressHandler streams playback events over a websocket.
//
// The browser keeps one connection per playing lesson and pushes raw widget
// events. Samples travel through the same reducer/queue path as the REST
// endpoint, the transport only changes how events arrive
type WSProgressHandler struct {
	ProgressUseCase domain.ProgressUseCase
	JWTUtil         *auth.JWTUtil
	Logger          *zap.Logger
}

// NewWSProgressHandler create a websocket progress controller
func NewWSProgressHandler(ProgressUseCase domain.ProgressUseCase, JWTUtil *auth.JWTUtil, Logger *zap.Logger) *WSProgressHandler {
	return &WSProgressHandler{
		ProgressUseCase: ProgressUseCase,
		JWTUtil:         JWTUtil,
		Logger:          Logger,
	}
}

// HandleProgressStream ...
func (wh *WSProgressHandler) HandleProgressStream(c echo.Context) error {
	return infra.ServeWS(c, wh.stream)
}

func (wh *WSProgressHandler) stream(c echo.Context, conn *websocket.Conn) error {
	claims := wh.JWTUtil.GetContextToken(c)
	courseID := c.Param("course_id")
	lessonID := c.Param("lesson_id")

	logger := wh.Logger.With(
		zap.String("user.id", claims.UID),
		zap.String("lesson.id", lessonID),
	)
	// connection outlives the upgrade request, do not inherit its context
	ctx := logging.SetLoggerInContext(context.Background(), logger)

	src := newWSSource(conn)
	sampler := player.NewSampler(src, func(sample domain.VideoSample) {
		progress, err := wh.ProgressUseCase.SaveVideoProgress(ctx, claims.UID, courseID, lessonID, sample)
		if err != nil {
			logger.Warn("Failed to save sample", zap.Error(err))
			return
		}
		src.writeSnapshot(progress)
	}, logger)
	if err := sampler.Start(); err != nil {
		return err
	}
	defer sampler.Close()

	return src.readLoop()
}

// playerEvent inbound message from the playback widget
type playerEvent struct {
	Type        string               `json:"type"` // ready | progress | state
	CurrentTime float64              `json:"current_time"`
	Duration    float64              `json:"duration"`
	State       domain.PlaybackState `json:"state"`
}

// playerCommand outbound control message for the playback widget
type playerCommand struct {
	Type    string  `json:"type"` // control | snapshot
	Action  string  `json:"action,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Payload any     `json:"payload,omitempty"`
}

// wsSource adapts a websocket connection to the player Source boundary.
// Reads happen on the connection goroutine, writes are serialized by mu
type wsSource struct {
	conn *websocket.Conn

	mu sync.Mutex // guards writes and cb
	cb player.Callbacks
}

var _ player.Source = &wsSource{}

func newWSSource(conn *websocket.Conn) *wsSource {
	return &wsSource{conn: conn}
}

func (s *wsSource) Attach(cb player.Callbacks) error {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
	return nil
}

func (s *wsSource) Detach() {
	s.mu.Lock()
	s.cb = player.Callbacks{}
	s.mu.Unlock()
}

func (s *wsSource) callbacks() player.Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb
}

func (s *wsSource) readLoop() error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		event := new(playerEvent)
		if err := json.Unmarshal(data, event); err != nil {
			// a malformed frame should not kill the stream
			continue
		}

		cb := s.callbacks()
		switch event.Type {
		case "ready":
			if cb.OnReady != nil {
				cb.OnReady()
			}
		case "progress":
			if cb.OnProgress != nil {
				cb.OnProgress(event.CurrentTime, event.Duration)
			}
		case "state":
			if cb.OnStateChange != nil {
				cb.OnStateChange(event.State)
			}
		}
	}
}

func (s *wsSource) writeSnapshot(progress *domain.LessonProgressModel) {
	s.write(&playerCommand{Type: "snapshot", Payload: progress})
}

func (s *wsSource) control(action string, value float64) error {
	return s.write(&playerCommand{Type: "control", Action: action, Value: value})
}

func (s *wsSource) write(cmd *playerCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(cmd)
}

func (s *wsSource) Play() error  { return s.control("play", 0) }
func (s *wsSource) Pause() error { return s.control("pause", 0) }

func (s *wsSource) SeekTo(seconds float64) error { return s.control("seek", seconds) }

func (s *wsSource) SetVolume(level float64) error { return s.control("volume", level) }

func (s *wsSource) SetPlaybackRate(rate float64) error { return s.control("rate", rate) }
