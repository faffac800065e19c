package bus

// InboundEnvelope is one message accepted from an ingress queue or a direct HTTP call.
// Source is the ingress address the message arrived on; routing depends on it alone.
type InboundEnvelope struct {
	Source string `json:"source_queue"`
	Body   string `json:"body"`
}

// OutboundEnvelope is one result ready for one-shot delivery to an egress queue.
type OutboundEnvelope struct {
	Destination string `json:"destination"`
	Body        string `json:"body"`
}
