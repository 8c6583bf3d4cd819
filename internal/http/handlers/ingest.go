package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "packetwatch/internal/db"
	httpctx "packetwatch/internal/http/ctx"
	"packetwatch/internal/realtime"
	"packetwatch/internal/session"
)

var (
	ingestEventsTotal    *prometheus.CounterVec
	publishFailuresTotal prometheus.Counter
)

func InitPrometheusMetrics() {
	ingestEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packetwatch",
			Name:      "ingest_events_total",
			Help:      "Ingestion gateway outcomes per inbound event.",
		},
		[]string{"mode", "outcome"},
	)
	publishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "packetwatch",
			Name:      "publish_failures_total",
			Help:      "Fan-out publishes that failed after the event was persisted.",
		},
	)
	prometheus.MustRegister(ingestEventsTotal, publishFailuresTotal)
}

func countIngest(mode, outcome string) {
	if ingestEventsTotal != nil {
		ingestEventsTotal.WithLabelValues(mode, outcome).Inc()
	}
}

func countPublishFailure() {
	if publishFailuresTotal != nil {
		publishFailuresTotal.Inc()
	}
}

// flexIP decodes the canonical dotted-string server_ip as well as the
// legacy array-of-octets shape some producers still emit.
type flexIP string

func (f *flexIP) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexIP(s)
		return nil
	}
	var octets []string
	if err := json.Unmarshal(data, &octets); err == nil {
		*f = flexIP(strings.Join(octets, "."))
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err == nil {
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.Itoa(n)
		}
		*f = flexIP(strings.Join(parts, "."))
		return nil
	}
	return errors.New("server_ip must be a string or an array of octets")
}

// flexUserID decodes a numeric user id given as a JSON number or a numeric
// string. Zero means malformed.
type flexUserID uint

func (f *flexUserID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexUserID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexUserID(n)
	return nil
}

// ingestRecord is the producer's wire format. client_ip selects IP-matching
// mode; userId selects direct-addressing mode. Headers and body pass
// through schema-less, validated for type only.
type ingestRecord struct {
	UserID         *flexUserID       `json:"userId,omitempty"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	ClientIP       string            `json:"client_ip,omitempty"`
	ServerIP       flexIP            `json:"server_ip,omitempty"`
	ServerHostname string            `json:"server_hostname,omitempty"`
	Port           *int              `json:"port,omitempty"`
	MatchResult    string            `json:"match_result,omitempty"`
	Timestamp      *time.Time        `json:"timestamp,omitempty"`
}

// Ingest is the producer-facing gateway. Per inbound record the pipeline is
// Received -> Validated -> Authorized -> Persisted -> Published, rejecting
// at any gate. Persist and publish are sequential and non-transactional:
// once the row is stored the operation has succeeded, and a publish failure
// is logged and counted but never rolled back.
func Ingest(db *gorm.DB, broker realtime.Broker, logger *zap.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var rec ingestRecord
		if err := json.Unmarshal(ctx.PostBody(), &rec); err != nil {
			countIngest("unknown", "rejected")
			writeMessage(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		if rec.UserID != nil {
			ingestDirect(ctx, db, broker, logger, &rec)
			return
		}
		if rec.ClientIP != "" {
			ingestByIP(ctx, db, broker, logger, &rec)
			return
		}

		countIngest("unknown", "rejected")
		writeMessage(ctx, fasthttp.StatusBadRequest, "invalid packet data - missing client_ip or userId")
	}
}

// ingestDirect handles direct-addressing mode: the producer asserts the
// destination user; no endpoint matching is performed.
func ingestDirect(ctx *fasthttp.RequestCtx, db *gorm.DB, broker realtime.Broker, logger *zap.Logger, rec *ingestRecord) {
	userID := uint(*rec.UserID)
	if userID == 0 {
		countIngest("direct", "rejected")
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"message": "userId must be a positive integer",
			"field":   "userId",
		})
		return
	}

	exists, err := dbpkg.UserExists(db, userID)
	if err != nil {
		logger.Error("ingest user lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		countIngest("direct", "rejected")
		writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
		return
	}
	if !exists {
		countIngest("direct", "rejected")
		writeMessage(ctx, fasthttp.StatusNotFound, "user not found")
		return
	}

	ev, err := storeAndPublish(db, broker, logger, rec, userID)
	if err != nil {
		countIngest("direct", "rejected")
		writeMessage(ctx, fasthttp.StatusInternalServerError, "failed to persist event")
		return
	}

	producer, _ := httpctx.IdentityFromCtx(ctx)
	logger.Info("event ingested",
		zap.String("mode", "direct"),
		zap.String("event_id", ev.ID),
		zap.Uint("addressee", userID),
		zap.Uint("producer", producerID(producer)),
	)
	countIngest("direct", "accepted")
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message":   "event processed successfully",
		"delivered": 1,
		"ids":       []string{ev.ID},
	})
}

// ingestByIP handles IP-matching mode: the producer broadcasts blind and
// the gateway filters against registered endpoints. No match is a silent
// drop (HTTP success). The event fans out once per distinct matched owner;
// the single-owner IP invariant is not assumed here.
func ingestByIP(ctx *fasthttp.RequestCtx, db *gorm.DB, broker realtime.Broker, logger *zap.Logger, rec *ingestRecord) {
	matches, err := dbpkg.FindEndpointsByIP(db, rec.ClientIP)
	if err != nil {
		logger.Error("ingest endpoint match failed", zap.String("client_ip", rec.ClientIP), zap.Error(err))
		countIngest("ip-match", "rejected")
		writeMessage(ctx, fasthttp.StatusInternalServerError, "internal server error")
		return
	}

	owners := make([]uint, 0, 1)
	seen := make(map[uint]bool)
	for _, ep := range matches {
		if !seen[ep.UserID] {
			seen[ep.UserID] = true
			owners = append(owners, ep.UserID)
		}
	}

	logger.Info("ingest ip match",
		zap.String("client_ip", rec.ClientIP),
		zap.Int("endpoints", len(matches)),
		zap.Int("owners", len(owners)),
	)

	if len(owners) == 0 {
		countIngest("ip-match", "dropped")
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{
			"message":   "no users tracking this IP",
			"delivered": 0,
		})
		return
	}

	ids := make([]string, 0, len(owners))
	for _, owner := range owners {
		ev, err := storeAndPublish(db, broker, logger, rec, owner)
		if err != nil {
			countIngest("ip-match", "rejected")
			writeMessage(ctx, fasthttp.StatusInternalServerError, "failed to persist event")
			return
		}
		ids = append(ids, ev.ID)
	}

	countIngest("ip-match", "accepted")
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message":   "event processed successfully",
		"delivered": len(owners),
		"ids":       ids,
	})
}

// storeAndPublish assigns the event id, persists the record, then publishes
// the persisted form to the owner's channel. Publish is fire-and-forget
// with respect to the response; the query path is the durable source of
// truth for anything a live subscriber misses.
func storeAndPublish(db *gorm.DB, broker realtime.Broker, logger *zap.Logger, rec *ingestRecord, ownerID uint) (*dbpkg.LiveEvent, error) {
	now := time.Now()
	ts := now
	if rec.Timestamp != nil {
		ts = *rec.Timestamp
	}

	headers := datatypes.JSONMap{}
	for k, v := range rec.Headers {
		headers[k] = v
	}

	ev := &dbpkg.LiveEvent{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UserID:         ownerID,
		URL:            rec.URL,
		Method:         rec.Method,
		Headers:        headers,
		Body:           rec.Body,
		ClientIP:       rec.ClientIP,
		ServerIP:       string(rec.ServerIP),
		ServerHostname: rec.ServerHostname,
		Port:           rec.Port,
		MatchResult:    rec.MatchResult,
		Timestamp:      ts,
	}

	if err := dbpkg.InsertEvent(db, ev); err != nil {
		logger.Error("event persist failed", zap.Uint("owner", ownerID), zap.Error(err))
		return nil, err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("event marshal for publish failed", zap.String("event_id", ev.ID), zap.Error(err))
		countPublishFailure()
		return ev, nil
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := broker.Publish(pubCtx, realtime.ChannelName(ownerID), payload); err != nil {
		logger.Warn("event publish failed",
			zap.String("event_id", ev.ID),
			zap.Uint("owner", ownerID),
			zap.Error(err),
		)
		countPublishFailure()
	}

	return ev, nil
}

func producerID(id *session.Identity) uint {
	if id == nil {
		return 0
	}
	return id.UserID
}
