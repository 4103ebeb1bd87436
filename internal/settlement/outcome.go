package settlement

import "encoding/json"

type Kind string

const (
	KindApproved     Kind = "approved"
	KindDeclined     Kind = "declined"
	KindGatewayError Kind = "gateway_error"
)

// Outcome is the normalized result of a processor call. Raw keeps the full
// response body for audit.
type Outcome struct {
	Kind   Kind
	Ref    string
	Reason string
	Raw    json.RawMessage
}

type processorResponse struct {
	Status        *bool  `json:"status"`
	ID            string `json:"id"`
	Authorization string `json:"authorization"`
	Description   string `json:"description"`
	Error         *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Classify maps a raw processor response body to an Outcome. Pure and
// deterministic: same body in, same outcome out.
//
// Priority: recognized success shape, then structured error shape, then
// everything else is a gateway error.
func Classify(raw []byte) Outcome {
	out := Outcome{Raw: append(json.RawMessage(nil), raw...)}

	var resp processorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		out.Kind = KindGatewayError
		out.Reason = "unrecognized response shape"
		return out
	}

	switch {
	case resp.Status != nil && *resp.Status && (resp.Authorization != "" || resp.ID != ""):
		out.Kind = KindApproved
		out.Ref = resp.ID
		out.Reason = resp.Description
		if out.Reason == "" {
			out.Reason = "APPROVED"
		}
	case resp.Error != nil:
		out.Kind = KindDeclined
		out.Ref = resp.ID
		out.Reason = resp.Error.Description
		if out.Reason == "" {
			out.Reason = "DECLINED"
		}
	default:
		out.Kind = KindGatewayError
		out.Reason = "unrecognized response shape"
	}
	return out
}
