package status

// Tier is the severity of a sensor reading as reported by the backend.
type Tier int

const (
	Normal Tier = iota
	Warning
	Danger
)

// Backend status codes. Anything else is Normal.
const (
	CodeWarning = "Warning"
	CodeDanger  = "Danger"
)

// Classify maps a backend status code to a tier. Matching is exact and
// case-sensitive: "danger" is Normal.
func Classify(code string) Tier {
	switch code {
	case CodeDanger:
		return Danger
	case CodeWarning:
		return Warning
	default:
		return Normal
	}
}

// Alerting reports whether the tier produces a warning.
func (t Tier) Alerting() bool {
	return t == Warning || t == Danger
}

func (t Tier) String() string {
	switch t {
	case Danger:
		return "Danger"
	case Warning:
		return "Warning"
	default:
		return "Normal"
	}
}

// Label is the Indonesian label shown next to a reading.
func (t Tier) Label() string {
	switch t {
	case Danger:
		return "Bahaya"
	case Warning:
		return "Waspada"
	default:
		return "Normal"
	}
}

// CSSClass returns the CSS class for styling
func (t Tier) CSSClass() string {
	switch t {
	case Danger:
		return "status-danger"
	case Warning:
		return "status-warning"
	default:
		return "status-normal"
	}
}

// Color returns the hex colour used for badges and chart markers.
func (t Tier) Color() string {
	switch t {
	case Danger:
		return "#dc2626"
	case Warning:
		return "#f59e0b"
	default:
		return "#16a34a"
	}
}
