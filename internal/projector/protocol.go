package projector

// Wire protocol constants for the HTTP control endpoint.
//
// The projector exposes a single CGI endpoint that accepts form-encoded
// POST bodies where the key and value are both the command token
// (e.g. "avmute=avmute"). Responses use a non-standard object notation
// with unquoted keys; see Normalize.
const (
	// ControlPath is the CGI control endpoint path.
	ControlPath = "/form/control_cgi"

	// LoginPath is the web login endpoint path.
	LoginPath = "/form/login_cgi"

	// SessionCookie is the fixed session cookie sent on every control
	// request once a session is established.
	SessionCookie = "atop=1"

	// CmdQuery requests the full control state.
	CmdQuery = "QueryControl=QueryControl"

	// CmdQueryInfo requests device information (model, firmware, MAC, serial).
	CmdQueryInfo = "QueryInfo=QueryInfo"

	// CmdPowerOn and CmdPowerOff are the HTTP power command bodies.
	CmdPowerOn  = "btn_powon=btn_powon"
	CmdPowerOff = "btn_powoff=btn_powoff"

	// ValueNotAvailable is the sentinel the projector reports for fields
	// not supported by this unit, firmware, or power state. It is
	// preserved verbatim so consumers can distinguish "unsupported"
	// from a real value of 255.
	ValueNotAvailable = "255"
)
