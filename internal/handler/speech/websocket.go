package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
	"github.com/zhouzirui/z-companion/backend/internal/service/conversation"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Stage names the step of a turn an error came from.
const (
	StageTranscription = "transcription"
	StageCompletion    = "completion"
	StageRequest       = "request"
)

// Replier answers one chat request.
type Replier interface {
	Reply(ctx context.Context, req conversation.Request) (string, error)
}

// ProfileFinder loads the therapist a connection talks to.
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (therapist.Profile, error)
}

// WebSocketHandler 实时语音对话处理器，一个连接对应一段会话
type WebSocketHandler struct {
	transcriber Transcriber
	replier     Replier
	sessions    *session.Service
	profiles    ProfileFinder
	readLimit   int64
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(transcriber Transcriber, replier Replier, sessions *session.Service, profiles ProfileFinder, maxUpload int64, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	return &WebSocketHandler{
		transcriber: transcriber,
		replier:     replier,
		sessions:    sessions,
		profiles:    profiles,
		// base64 audio inflates by a third
		readLimit: maxUpload*4/3 + 4096,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With(zap.String("component", "voice")),
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/therapists/{therapistID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AudioMessage 一段完整录音；audioData 为 base64
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
}

// TextMessage 手动输入的文本
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type errorPayload struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type connectionState struct {
	sessionID   string
	therapistID string
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	therapistID := strings.TrimSpace(chi.URLParam(r, "therapistID"))
	profile, err := h.profiles.FindByID(r.Context(), therapistID)
	if err != nil {
		utils.RespondFailure(w, err, "failed to load therapist")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := h.sessions.CreateSession(ctx, profile.ID)
	if err != nil {
		h.log.Warn("create session failed", zap.Error(err))
		return
	}
	defer h.sessions.Close(context.Background(), sess.ID)

	state := &connectionState{sessionID: sess.ID, therapistID: profile.ID}
	log := h.log.With(zap.String("session", sess.ID), zap.String("therapist", profile.ID))
	log.Info("voice session opened")
	defer log.Info("voice session closed")

	conn.SetReadLimit(h.readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, state, "connected", profile.Summary())

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", zap.Error(err))
			}
			return
		}
		h.handleMessage(ctx, conn, state, &msg)
		// 处理期间不读取 pong，回合结束后重新计时
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	case "text":
		h.handleTextMessage(ctx, conn, state, msg.Data)
	case "reset":
		if err := h.sessions.Reset(ctx, state.sessionID); err != nil {
			h.sendError(conn, state, StageRequest, err.Error())
			return
		}
		h.send(conn, state, "reset", nil)
	default:
		h.sendError(conn, state, StageRequest, "unsupported message type: "+msg.Type)
	}
}

// handleAudioMessage 转写一段录音；转写失败不写入会话
func (h *WebSocketHandler) handleAudioMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		h.sendError(conn, state, StageRequest, "invalid audio payload")
		return
	}
	if len(audio.AudioData) == 0 {
		h.sendError(conn, state, StageTranscription, "No audio file provided")
		return
	}
	if h.transcriber == nil {
		h.sendError(conn, state, StageTranscription, "transcription unavailable")
		return
	}

	format := strings.TrimPrefix(strings.ToLower(audio.Format), ".")
	if format == "" {
		format = "webm"
	}

	text, err := h.transcriber.Transcribe(ctx, audio.AudioData, "audio."+format)
	if err != nil {
		h.log.Warn("transcription failed", zap.String("session", state.sessionID), zap.Error(err))
		h.sendError(conn, state, StageTranscription, "Failed to transcribe audio")
		return
	}

	h.send(conn, state, "transcript", map[string]string{"text": text})
	h.processUserText(ctx, conn, state, text)
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, state, StageRequest, "invalid text payload")
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		h.sendError(conn, state, StageRequest, "text is required")
		return
	}

	h.processUserText(ctx, conn, state, strings.TrimSpace(text.Text))
}

// processUserText 记录用户消息并生成回复。回复失败时保留用户消息。
func (h *WebSocketHandler) processUserText(ctx context.Context, conn *websocket.Conn, state *connectionState, userText string) {
	history, err := h.sessions.LoadTranscript(ctx, state.sessionID)
	if err != nil {
		h.sendError(conn, state, StageRequest, err.Error())
		return
	}

	if err := h.sessions.Append(ctx, state.sessionID, chat.UserMessage(userText)); err != nil {
		h.sendError(conn, state, StageRequest, err.Error())
		return
	}

	reply, err := h.replier.Reply(ctx, conversation.Request{
		TherapistID: state.therapistID,
		Message:     userText,
		History:     history,
	})
	if err != nil {
		h.log.Warn("reply failed", zap.String("session", state.sessionID), zap.Error(err))
		message := "Failed to generate response"
		if failure.HTTPStatus(err) < http.StatusInternalServerError {
			message = err.Error()
		}
		h.sendError(conn, state, StageCompletion, message)
		return
	}

	if err := h.sessions.Append(ctx, state.sessionID, chat.AssistantMessage(reply)); err != nil {
		h.sendError(conn, state, StageRequest, err.Error())
		return
	}
	h.send(conn, state, "reply", map[string]string{"text": reply})
}

func (h *WebSocketHandler) send(conn *websocket.Conn, state *connectionState, kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: state.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Warn("write failed", zap.String("type", kind), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, state *connectionState, stage, message string) {
	h.send(conn, state, "error", errorPayload{Stage: stage, Message: message})
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
