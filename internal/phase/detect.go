package phase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/httputil"
	"github.com/kawaltani/kawaltani/internal/metrics"
)

var (
	// ErrUnreachable wraps failures to reach the detection service.
	ErrUnreachable = errors.New("phase: detection service unreachable")
	ErrNoImage     = errors.New("phase: no image")
)

// UnreachableNotice is shown when the detection service cannot be reached.
const UnreachableNotice = "Gagal menghubungi server. Pastikan server deteksi berjalan."

// DetectionError is an error reported by the detection service itself.
type DetectionError struct {
	Message string
}

func (e *DetectionError) Error() string {
	return "phase: " + e.Message
}

// Result is the detection service's answer.
type Result struct {
	Key   Key    `json:"fase"`
	Error string `json:"error"`
}

// Phase returns the catalogue entry for the detected phase.
func (r Result) Phase() (Phase, bool) {
	return Lookup(r.Key)
}

// Detector uploads field photos to the phase detection service.
type Detector struct {
	baseURL    string
	httpClient *http.Client
}

func NewDetector(baseURL string) *Detector {
	return &Detector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httputil.NewClient(),
	}
}

// Detect posts image as the multipart field "file" and returns the detected
// phase. A response carrying an error is returned as *DetectionError.
func (d *Detector) Detect(ctx context.Context, filename string, image io.Reader) (Result, error) {
	if image == nil {
		return Result{}, ErrNoImage
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	n, err := io.Copy(part, image)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	if n == 0 {
		return Result{}, ErrNoImage
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/deteksi-fase/", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httputil.UserAgent)

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	metrics.BackendLatency.WithLabelValues("deteksi-fase").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendCallsTotal.WithLabelValues("deteksi-fase", "error").Inc()
		return Result{}, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	metrics.BackendCallsTotal.WithLabelValues("deteksi-fase", strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response (status %d): %w", ErrUnreachable, resp.StatusCode, err)
	}
	if result.Error != "" {
		metrics.PhaseDetections.WithLabelValues("error").Inc()
		return result, &DetectionError{Message: result.Error}
	}
	if resp.StatusCode != http.StatusOK {
		metrics.PhaseDetections.WithLabelValues("error").Inc()
		return result, &DetectionError{Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	label := string(result.Key)
	if _, ok := result.Phase(); !ok {
		label = "unknown"
	}
	metrics.PhaseDetections.WithLabelValues(label).Inc()
	log.Printf("phase: detected %s for %s", label, filename)
	return result, nil
}

// Notice returns the user-facing message for a detection error.
func Notice(err error) string {
	var detErr *DetectionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &detErr):
		return detErr.Message
	case errors.Is(err, ErrNoImage):
		return "Pilih gambar terlebih dahulu."
	default:
		return UnreachableNotice
	}
}
