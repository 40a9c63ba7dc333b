package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/card"
	"github.com/sajaddeen/readai-task-automation/internal/config"
	"github.com/sajaddeen/readai-task-automation/internal/queue"
	"github.com/sajaddeen/readai-task-automation/internal/review"
)

// maxInteractionBytes caps the interaction callback body.
const maxInteractionBytes = 1 << 20

// signatureSkew is how far an interaction timestamp may drift before the
// callback is treated as a replay.
const signatureSkew = 5 * time.Minute

// interactionPayload is the decoded interaction callback: a button click
// (block_actions) or a submitted feedback form (view_submission).
type interactionPayload struct {
	Type        string              `json:"type"`
	TriggerID   string              `json:"trigger_id"`
	ResponseURL string              `json:"response_url"`
	Actions     []interactionAction `json:"actions"`
	View        interactionView     `json:"view"`
}

type interactionAction struct {
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
}

type interactionView struct {
	CallbackID      string         `json:"callback_id"`
	PrivateMetadata string         `json:"private_metadata"`
	State           card.ViewState `json:"state"`
}

// handleInteraction dispatches one interaction callback. The platform
// expects a fast 200; everything slow already runs behind the reviewer's
// worker pool, except the modal open which must stay synchronous.
func (s *Server) handleInteraction(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxInteractionBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if err := verifySignature(s.slackSigningSecret, c.Request().Header, body, time.Now()); err != nil {
		s.logger.Warn(ctx, "interaction rejected: bad signature", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	// The payload rides in a form field, JSON inside urlencoding.
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form body")
	}
	var payload interactionPayload
	if err := json.Unmarshal([]byte(values.Get("payload")), &payload); err != nil {
		s.logger.Warn(ctx, "interaction rejected: bad payload", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	switch payload.Type {
	case "block_actions":
		return s.handleBlockActions(c, payload)
	case "view_submission":
		return s.handleViewSubmission(c, payload)
	default:
		s.logger.Info(ctx, "ignoring interaction type", zap.String("interaction.type", payload.Type))
		return c.NoContent(http.StatusOK)
	}
}

func (s *Server) handleBlockActions(c echo.Context, payload interactionPayload) error {
	ctx := c.Request().Context()
	if len(payload.Actions) == 0 {
		return c.NoContent(http.StatusOK)
	}
	action := payload.Actions[0]

	decoded, err := card.DecodeActionPayload(action.Value)
	if err != nil {
		s.logger.Warn(ctx, "interaction carried undecodable action value",
			zap.String("action.id", action.ActionID), zap.Error(err))
		return c.NoContent(http.StatusOK)
	}
	click := review.Click{
		Payload:     decoded,
		ResponseURL: payload.ResponseURL,
		TriggerID:   payload.TriggerID,
	}

	switch action.ActionID {
	case card.ActionIDAccept:
		err = s.reviewer.HandleAccept(ctx, click)
	case card.ActionIDSkip:
		err = s.reviewer.HandleSkip(ctx, click)
	case card.ActionIDFeedback:
		err = s.reviewer.HandleFeedbackOpen(ctx, click)
	default:
		s.logger.Info(ctx, "ignoring unknown action", zap.String("action.id", action.ActionID))
		return c.NoContent(http.StatusOK)
	}
	if err != nil {
		s.logger.Error(ctx, "interaction handling failed",
			zap.String("action.id", action.ActionID),
			zap.String("session.id", decoded.SessionID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "interaction failed")
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleViewSubmission(c echo.Context, payload interactionPayload) error {
	ctx := c.Request().Context()
	if payload.View.CallbackID != card.FeedbackCallbackID {
		s.logger.Info(ctx, "ignoring unknown view submission",
			zap.String("callback.id", payload.View.CallbackID))
		return c.NoContent(http.StatusOK)
	}

	err := s.reviewer.HandleFeedbackSubmit(ctx, payload.View.PrivateMetadata, payload.View.State)
	if err != nil {
		if errors.Is(err, queue.ErrFeedbackNotFound) {
			// The form outlived its session; closing the modal is all
			// that is left to do.
			s.logger.Info(ctx, "submission for expired feedback form",
				zap.String("form.id", payload.View.PrivateMetadata))
			return c.NoContent(http.StatusOK)
		}
		s.logger.Error(ctx, "feedback submission failed",
			zap.String("form.id", payload.View.PrivateMetadata),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "feedback failed")
	}
	// An empty 200 closes the modal.
	return c.NoContent(http.StatusOK)
}

// verifySignature checks the platform's v0 request signature: HMAC-SHA256
// of "v0:<timestamp>:<body>" keyed by the signing secret. An unset secret
// disables the check.
func verifySignature(secret config.Secret, header http.Header, body []byte, now time.Time) error {
	if !secret.IsSet() {
		return nil
	}

	ts := header.Get("X-Slack-Request-Timestamp")
	sig := header.Get("X-Slack-Signature")
	if ts == "" || sig == "" {
		return fmt.Errorf("missing signature headers")
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}
	drift := now.Sub(time.Unix(unix, 0))
	if drift > signatureSkew || drift < -signatureSkew {
		return fmt.Errorf("timestamp outside allowed skew")
	}

	mac := hmac.New(sha256.New, []byte(secret.Value()))
	fmt.Fprintf(mac, "v0:%s:", ts)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
