// Package cluster implements peer-to-peer replication between Gogios
// instances: mutual-TLS links, heartbeat liveness, consistent-hash
// authority election, and message relay with loop avoidance. Grounded on
// original_source/components/cluster/clusterlistener.cpp.
package cluster

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Verb names the message types relayed between endpoints (spec.md §4.7).
type Verb string

const (
	VerbHeartbeat                Verb = "HeartBeat"
	VerbBlockLink                Verb = "BlockLink"
	VerbCheckResult              Verb = "CheckResult"
	VerbSetNextCheck             Verb = "SetNextCheck"
	VerbSetForceNextCheck        Verb = "SetForceNextCheck"
	VerbSetForceNextNotification Verb = "SetForceNextNotification"
	VerbSetEnableActiveChecks    Verb = "SetEnableActiveChecks"
	VerbSetEnablePassiveChecks   Verb = "SetEnablePassiveChecks"
	VerbSetEnableNotifications   Verb = "SetEnableNotifications"
	VerbSetEnableFlapping        Verb = "SetEnableFlapping"
	VerbSetNextNotification      Verb = "SetNextNotification"
	VerbAddComment               Verb = "AddComment"
	VerbRemoveComment            Verb = "RemoveComment"
	VerbAddDowntime              Verb = "AddDowntime"
	VerbRemoveDowntime           Verb = "RemoveDowntime"
	VerbSetAcknowledgement       Verb = "SetAcknowledgement"
	VerbClearAcknowledgement     Verb = "ClearAcknowledgement"
	VerbSetLogPosition           Verb = "SetLogPosition"
	VerbConfig                   Verb = "Config"
)

// methodPrefix namespaces verbs in the wire "method" field, matching
// clusterlistener.cpp's "cluster::<Verb>" naming (spec.md §6).
const methodPrefix = "cluster::"

// Method returns the JSON-RPC-shaped method name for v.
func (v Verb) Method() string { return methodPrefix + string(v) }

// VerbFromMethod strips the "cluster::" prefix, returning ok=false if
// method isn't in that namespace.
func VerbFromMethod(method string) (Verb, bool) {
	if len(method) <= len(methodPrefix) || method[:len(methodPrefix)] != methodPrefix {
		return "", false
	}
	return Verb(method[len(methodPrefix):]), true
}

// Security carries the privilege mask a message was tagged with at the
// point of origin, used to gate relay to endpoints outside the domain
// that produced it (spec.md §4.7, objects.Domain.GetPrivileges).
type Security struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Privs uint32 `json:"privs"`
}

// Message is the wire envelope relayed between endpoints. Ts is assigned
// by the relaying node at RelayMessage time, never by the originator,
// matching clusterlistener.cpp's AsyncRelayMessage/RelayMessage split.
// Params is stored as raw JSON so a receiver can look up the verb first
// and then unmarshal into the matching typed payload below.
type Message struct {
	JSONRPC     string          `json:"jsonrpc,omitempty"`
	Verb        Verb            `json:"-"`
	Method      string          `json:"method"`
	Source      string          `json:"source,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Ts          float64         `json:"ts"`
	Security    *Security       `json:"security,omitempty"`
	Params      json.RawMessage `json:"params,omitempty"`
	Persistent  bool            `json:"-"`
}

// MarshalJSON derives Method from Verb (when unset) before delegating to
// the default struct encoding.
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	cp := *m
	if cp.Method == "" {
		cp.Method = cp.Verb.Method()
	}
	if cp.JSONRPC == "" {
		cp.JSONRPC = "2.0"
	}
	return json.Marshal((*alias)(&cp))
}

// UnmarshalJSON derives Verb from the decoded Method field.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	if err := json.Unmarshal(data, (*alias)(m)); err != nil {
		return err
	}
	if v, ok := VerbFromMethod(m.Method); ok {
		m.Verb = v
	}
	return nil
}

// SetParams marshals body into Params.
func (m *Message) SetParams(body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal cluster message params")
	}
	m.Params = raw
	return nil
}

// DecodeParams unmarshals Params into out.
func (m *Message) DecodeParams(out interface{}) error {
	if len(m.Params) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(m.Params, out), "decode cluster message params")
}

// Timestamp returns Ts as a time.Time.
func (m *Message) Timestamp() time.Time {
	sec := int64(m.Ts)
	nsec := int64((m.Ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// SetTimestamp stamps the message with t, the format RelayMessage uses.
func (m *Message) SetTimestamp(t time.Time) {
	m.Ts = float64(t.UnixNano()) / 1e9
}

// NewMessage builds a Message for verb with params marshaled into Params.
func NewMessage(verb Verb, params interface{}) (*Message, error) {
	msg := &Message{Verb: verb, Method: verb.Method()}
	if params != nil {
		if err := msg.SetParams(params); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// Handler processes a single verb's message body, given the sending
// endpoint's identity. Registered per-Verb on a Router.
type Handler func(source string, msg *Message)

// Router dispatches inbound messages by Verb to registered Handlers,
// mirroring clusterlistener.cpp's MessageHandler if/else-if chain as an
// explicit table (spec.md §4.7) instead of a type switch, so
// extcmd-triggered mutations and replicated mutations share one call site
// per verb (SPEC_FULL.md §4.8).
type Router struct {
	handlers map[Verb]Handler
}

// NewRouter builds an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Verb]Handler)}
}

// Register installs h for verb, replacing any previous handler.
func (r *Router) Register(verb Verb, h Handler) {
	r.handlers[verb] = h
}

// Dispatch invokes the handler registered for msg.Verb, if any.
func (r *Router) Dispatch(source string, msg *Message) {
	if h, ok := r.handlers[msg.Verb]; ok {
		h(source, msg)
	}
}

// --- Typed params for each verb (spec.md §4.7 table) ---

type HeartbeatParams struct {
	Identity           string   `json:"identity"`
	Features           uint32   `json:"features"`
	ConnectedEndpoints []string `json:"connected_endpoints"`
}

type CheckResultParams struct {
	Type      string          `json:"type"` // "Host" or "Service"
	Checkable string          `json:"checkable"`
	Result    json.RawMessage `json:"check_result"`
}

type SetNextCheckParams struct {
	Type      string  `json:"type"`
	Checkable string  `json:"checkable"`
	NextCheck float64 `json:"next_check"`
}

type SetForcedParams struct {
	Type      string `json:"type"`
	Checkable string `json:"checkable"`
	Forced    bool   `json:"forced"`
}

type SetEnabledParams struct {
	Type      string `json:"type"`
	Checkable string `json:"checkable"`
	Enabled   bool   `json:"enabled"`
}

type SetNextNotificationParams struct {
	Notification     string  `json:"notification"`
	NextNotification float64 `json:"next_notification"`
}

type CommentParams struct {
	Type      string          `json:"type"`
	Checkable string          `json:"checkable"`
	Comment   json.RawMessage `json:"comment,omitempty"`
	ID        uint64          `json:"id,omitempty"`
}

type DowntimeParams struct {
	Type      string          `json:"type"`
	Checkable string          `json:"checkable"`
	Downtime  json.RawMessage `json:"downtime,omitempty"`
	ID        uint64          `json:"id,omitempty"`
}

type AcknowledgementParams struct {
	Type      string  `json:"type"`
	Checkable string  `json:"checkable"`
	Author    string  `json:"author"`
	Comment   string  `json:"comment"`
	AckType   int     `json:"ack_type"`
	Expiry    float64 `json:"expiry"`
}

type SetLogPositionParams struct {
	LogPosition float64 `json:"log_position"`
}

type ConfigParams struct {
	Identity    string            `json:"identity"`
	ConfigFiles map[string]string `json:"config_files"`
}
