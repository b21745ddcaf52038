package domain

// ResultKind tags the outcome of a pipeline pass.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultNoAsset
	ResultTransportFailure
	ResultParseFailure
	ResultConfigMissing
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultNoAsset:
		return "no_asset"
	case ResultTransportFailure:
		return "transport_failure"
	case ResultParseFailure:
		return "parse_failure"
	case ResultConfigMissing:
		return "config_missing"
	}
	return "unknown"
}

// Result is the typed outcome of the backend half of a pipeline pass.
// Only the fields that belong to Kind are set.
type Result struct {
	Kind ResultKind

	// Success
	Asset InlineAsset

	// NoAsset. ModelNote may be empty.
	ModelNote string

	// TransportFailure and ParseFailure. HTTPStatus is 0 when the backend
	// never answered with a status.
	HTTPStatus int
	Body       string
	Cause      string

	// ConfigMissing
	MissingKeys []string

	Attempts int
}

// OK reports whether the pass produced an asset.
func (r Result) OK() bool { return r.Kind == ResultSuccess }

// Succeeded wraps an asset.
func Succeeded(asset InlineAsset) Result {
	return Result{Kind: ResultSuccess, Asset: asset}
}

// NoAsset records a model answer that carried no image.
func NoAsset(note string) Result {
	return Result{Kind: ResultNoAsset, ModelNote: note}
}

// ConfigMissing records absent backend configuration.
func ConfigMissing(keys []string) Result {
	return Result{Kind: ResultConfigMissing, MissingKeys: append([]string(nil), keys...)}
}

// DiagnosticLimit caps raw backend bodies carried in results and responses.
const DiagnosticLimit = 2000

// Snippet truncates s to DiagnosticLimit runes.
func Snippet(s string) string {
	if len(s) <= DiagnosticLimit {
		return s
	}
	r := []rune(s)
	if len(r) <= DiagnosticLimit {
		return s
	}
	return string(r[:DiagnosticLimit])
}
