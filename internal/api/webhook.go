package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/metrics"
	"github.com/peyal-939/kobotest/internal/submission"
)

const maxWebhookBodyBytes = 1 << 20

// webhookSchemaJSON enforces the one field a push delivery must carry: the
// submission UUID. A missing form identifier is tolerated; the document
// falls back to the "unknown" form.
const webhookSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["_uuid"],
	"properties": {
		"_uuid": {"type": "string", "minLength": 1}
	}
}`

func compileWebhookSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(webhookSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("webhook.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("webhook.json")
}

// webhook ingests one submission document pushed by KoboToolbox REST
// Services. A push carries the authoritative latest state, so the upsert
// always overwrites. The provider offers no signature or replay protection
// for these deliveries; any well-formed payload is accepted.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		metrics.ObserveWebhook("rejected")
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		metrics.ObserveWebhook("rejected")
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.webhookSchema.Validate(inst); err != nil {
		metrics.ObserveWebhook("rejected")
		writeError(w, http.StatusBadRequest, "Missing _uuid in payload")
		return
	}

	payload, ok := inst.(map[string]any)
	if !ok {
		metrics.ObserveWebhook("rejected")
		writeError(w, http.StatusBadRequest, "payload must be a JSON object")
		return
	}
	doc := kobo.Document(payload)

	sub := submission.Submission{
		RemoteID:      doc.RemoteID(),
		FormUID:       doc.FormUID(),
		Payload:       doc,
		DateSubmitted: doc.SubmittedAt(time.Now().UTC()),
	}

	outcome, err := s.store.Upsert(r.Context(), sub, true)
	if err != nil {
		s.log.Error("webhook upsert failed",
			zap.String("remote_id", sub.RemoteID),
			zap.Error(err),
		)
		metrics.ObserveWebhook("failed")
		writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	metrics.ObserveWebhook(outcome.String())
	status := http.StatusOK
	if outcome == submission.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{
		"status": "ok",
		"action": outcome.String(),
		"uuid":   sub.RemoteID,
	})
}
