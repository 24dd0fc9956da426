package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/metrics"
	"github.com/R3E-Network/quietmap/internal/app/services/places"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

const maxBodyBytes = 1 << 20

type procedureKind string

const (
	kindQuery    procedureKind = "query"
	kindMutation procedureKind = "mutation"
)

// method returns the HTTP method a procedure of this kind is invoked with.
func (k procedureKind) method() string {
	if k == kindQuery {
		return http.MethodGet
	}
	return http.MethodPost
}

// procedure is one entry of the RPC table. call decodes and validates the raw
// input before invoking the service, so a rejected input never reaches it.
type procedure struct {
	kind procedureKind
	call func(ctx context.Context, raw json.RawMessage) (any, error)
}

func bind[In, Out any](kind procedureKind, decode func(json.RawMessage) (In, error), handle func(context.Context, In) (Out, error)) procedure {
	return procedure{
		kind: kind,
		call: func(ctx context.Context, raw json.RawMessage) (any, error) {
			in, err := decode(raw)
			if err != nil {
				return nil, err
			}
			return handle(ctx, in)
		},
	}
}

// noInput accepts and ignores anything.
func noInput(json.RawMessage) (struct{}, error) { return struct{}{}, nil }

// gateway dispatches /trpc/{procedures} calls to the places service.
type gateway struct {
	procedures map[string]procedure
	log        *logger.Logger
}

func newGateway(svc *places.Service, log *logger.Logger) *gateway {
	return &gateway{
		log: log,
		procedures: map[string]procedure{
			"createPlace": bind(kindMutation, decodeInput[createPlaceInput],
				func(ctx context.Context, in createPlaceInput) (place.Place, error) {
					return svc.CreatePlace(ctx, in.params())
				}),
			"addMeasurement": bind(kindMutation, decodeInput[addMeasurementInput],
				func(ctx context.Context, in addMeasurementInput) (place.Measurement, error) {
					m, err := svc.AddMeasurement(ctx, in.params())
					if err == nil {
						metrics.RecordMeasurement(m.Value)
					}
					return m, err
				}),
			"getPlaces": bind(kindQuery, noInput,
				func(ctx context.Context, _ struct{}) ([]place.Summary, error) {
					return svc.ListPlaces(ctx)
				}),
		},
	}
}

type envelope struct {
	Result *resultBody `json:"result,omitempty"`
	Error  *errorBody  `json:"error,omitempty"`
}

type resultBody struct {
	Data any `json:"data"`
}

type errorBody struct {
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Code       string            `json:"code"`
	HTTPStatus int               `json:"httpStatus"`
	Path       string            `json:"path,omitempty"`
	Kind       svcerrors.Kind    `json:"kind,omitempty"`
	Issues     []svcerrors.Issue `json:"issues,omitempty"`
	Details    map[string]any    `json:"details,omitempty"`
}

func (g *gateway) serve(w http.ResponseWriter, r *http.Request) {
	names := mux.Vars(r)["procedures"]
	batch := isBatch(r)

	raw, err := readInput(w, r)
	if err != nil {
		writeEnvelope(w, g.failure("", svcerrors.Validation(svcerrors.Issue{Path: "", Message: err.Error()})))
		return
	}

	if !batch {
		writeEnvelope(w, g.invoke(r.Context(), names, r.Method, raw))
		return
	}

	inputs := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &inputs); err != nil {
			writeEnvelope(w, g.failure("", svcerrors.Validation(svcerrors.Issue{Path: "", Message: "Batch input must be an object keyed by call index"})))
			return
		}
	}

	calls := strings.Split(names, ",")
	results := make([]envelope, 0, len(calls))
	status := http.StatusOK
	for i, name := range calls {
		env := g.invoke(r.Context(), name, r.Method, inputs[strconv.Itoa(i)])
		if env.Error != nil {
			status = http.StatusMultiStatus
		}
		results = append(results, env)
	}
	writeJSON(w, status, results)
}

// invoke runs a single procedure call and builds its envelope.
func (g *gateway) invoke(ctx context.Context, name, method string, raw json.RawMessage) envelope {
	start := time.Now()

	proc, ok := g.procedures[name]
	if !ok {
		metrics.RecordProcedure("unknown", "NOT_FOUND", time.Since(start))
		return g.failure(name, svcerrors.NotFound("procedure "+name))
	}
	if method != proc.kind.method() {
		metrics.RecordProcedure(name, "METHOD_NOT_SUPPORTED", time.Since(start))
		return g.failure(name, svcerrors.MethodNotAllowed(name, method))
	}

	data, err := proc.call(ctx, raw)
	if err != nil {
		env := g.failure(name, err)
		metrics.RecordProcedure(name, env.Error.Data.Code, time.Since(start))
		return env
	}
	metrics.RecordProcedure(name, "OK", time.Since(start))
	return envelope{Result: &resultBody{Data: data}}
}

func (g *gateway) failure(path string, err error) envelope {
	svcErr := svcerrors.From(err)
	code, rpcCode := rpcCodes(svcErr)

	entry := g.log.WithField("procedure", path).WithField("code", code)
	if svcErr.HTTPStatus >= http.StatusInternalServerError {
		entry.WithError(err).Error("procedure failed")
	} else {
		entry.Debug(svcErr.Message)
	}

	message := svcErr.Message
	if svcErr.Kind == svcerrors.KindInternal {
		// Internal causes stay in the log.
		message = "Internal server error"
	}

	return envelope{Error: &errorBody{
		Message: message,
		Code:    rpcCode,
		Data: errorData{
			Code:       code,
			HTTPStatus: svcErr.HTTPStatus,
			Path:       path,
			Kind:       svcErr.Kind,
			Issues:     svcErr.Issues,
			Details:    svcErr.Details,
		},
	}}
}

// rpcCodes maps a ServiceError to its tRPC code name and JSON-RPC number.
func rpcCodes(err *svcerrors.ServiceError) (string, int) {
	switch {
	case err.Kind == svcerrors.KindValidation:
		return "BAD_REQUEST", -32600
	case err.Kind == svcerrors.KindStorage && err.Reason == svcerrors.ReasonReferentialIntegrity:
		return "CONFLICT", -32009
	case err.Kind == svcerrors.KindNotFound:
		return "NOT_FOUND", -32004
	case err.Kind == svcerrors.KindMethodNotAllowed:
		return "METHOD_NOT_SUPPORTED", -32005
	default:
		return "INTERNAL_SERVER_ERROR", -32603
	}
}

func isBatch(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("batch")) {
	case "1", "true":
		return true
	}
	return false
}

// readInput returns the call input: the input query parameter for GET, the
// body otherwise.
func readInput(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Method == http.MethodGet {
		return json.RawMessage(r.URL.Query().Get("input")), nil
	}
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("unable to read request body")
	}
	return body, nil
}

func writeEnvelope(w http.ResponseWriter, env envelope) {
	status := http.StatusOK
	if env.Error != nil {
		status = env.Error.Data.HTTPStatus
	}
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
