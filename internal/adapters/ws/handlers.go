package ws

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mkanev/Pulse/internal/domain"
)

func (ctl *Controller) dispatch(sess *session, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		return
	}

	switch env.Type {
	case "register":
		ctl.handleRegister(sess, data)
	case "ping":
		ctl.handlePing(sess)
	case "call-user":
		ctl.handleCallUser(sess, data)
	case "answer-call":
		ctl.handleAnswerCall(sess, data)
	case "ice-candidate":
		ctl.handleCandidate(sess, data)
	case "end-call":
		ctl.handleEndCall(sess, data)
	case "typing":
		ctl.handleTyping(sess, data, true)
	case "stop-typing":
		ctl.handleTyping(sess, data, false)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown envelope")
	}
}

func (ctl *Controller) sendJSON(sess *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = sess.conn.TrySend(b)
}

func (ctl *Controller) sendError(sess *session, msg string) {
	ctl.sendJSON(sess, map[string]any{
		"type":  "error",
		"error": msg,
	})
}

// identified gates envelopes that need a sender. An anonymous socket
// gets an error event and the envelope is dropped.
func (ctl *Controller) identified(sess *session) bool {
	if sess.uid == "" {
		ctl.sendError(sess, "not_registered")
		return false
	}
	return true
}

// handleRegister is the fallback identification path for clients that
// did not pass userId on the handshake. Re-registering under the same
// id is harmless; switching ids on a live socket is refused.
func (ctl *Controller) handleRegister(sess *session, data []byte) {
	var p struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad register payload")
		ctl.sendError(sess, "bad_payload")
		return
	}
	uid, err := domain.ParseUserID(p.UserID)
	if err != nil {
		ctl.sendError(sess, "bad_user_id")
		return
	}
	if sess.uid != "" && sess.uid != uid {
		ctl.sendError(sess, "already_registered")
		return
	}
	if sess.uid == uid {
		return
	}
	sess.uid = uid
	ctl.Hub.Connect(uid, sess.conn)
	log.Info().Str("module", "ws").Str("user", string(uid)).Msg("registered via envelope")
}

func (ctl *Controller) handlePing(sess *session) {
	ctl.sendJSON(sess, map[string]string{"type": "pong"})
}

func (ctl *Controller) handleCallUser(sess *session, data []byte) {
	if !ctl.identified(sess) {
		return
	}
	var p struct {
		Type  string                    `json:"type"`
		To    string                    `json:"to"`
		Offer webrtc.SessionDescription `json:"offer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad call-user payload")
		ctl.sendError(sess, "bad_payload")
		return
	}
	to, err := domain.ParseUserID(p.To)
	if err != nil {
		ctl.sendError(sess, "bad_target")
		return
	}
	ctl.Hub.Calls().Offer(sess.uid, to, p.Offer)
}

func (ctl *Controller) handleAnswerCall(sess *session, data []byte) {
	if !ctl.identified(sess) {
		return
	}
	var p struct {
		Type   string                    `json:"type"`
		To     string                    `json:"to"`
		Answer webrtc.SessionDescription `json:"answer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad answer-call payload")
		ctl.sendError(sess, "bad_payload")
		return
	}
	to, err := domain.ParseUserID(p.To)
	if err != nil {
		ctl.sendError(sess, "bad_target")
		return
	}
	ctl.Hub.Calls().Answer(sess.uid, to, p.Answer)
}

func (ctl *Controller) handleCandidate(sess *session, data []byte) {
	if !ctl.identified(sess) {
		return
	}
	var p struct {
		Type      string                  `json:"type"`
		To        string                  `json:"to"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad ice-candidate payload")
		return
	}
	to, err := domain.ParseUserID(p.To)
	if err != nil {
		return
	}
	ctl.Hub.Calls().Candidate(sess.uid, to, p.Candidate)
}

func (ctl *Controller) handleEndCall(sess *session, data []byte) {
	if !ctl.identified(sess) {
		return
	}
	var p struct {
		Type string `json:"type"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad end-call payload")
		return
	}
	to, err := domain.ParseUserID(p.To)
	if err != nil {
		return
	}
	ctl.Hub.Calls().End(sess.uid, to)
}

func (ctl *Controller) handleTyping(sess *session, data []byte, active bool) {
	if !ctl.identified(sess) {
		return
	}
	var p struct {
		Type string `json:"type"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	to, err := domain.ParseUserID(p.To)
	if err != nil {
		return
	}
	ctl.Hub.SetTyping(sess.uid, to, active)
}
