// Package forward reenvía la request autorizada al proveedor upstream.
//
// La credencial resuelta por el pipeline entra acá como bearer header de
// exactamente UNA llamada saliente. Nunca se loguea ni se retiene: el
// forwarder no guarda estado por request.
package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/safeurl"
)

// Request es la llamada a reenviar, ya autorizada.
type Request struct {
	Provider   string
	Method     string
	Path       string // path relativo al base URL del proveedor
	Header     http.Header
	Body       io.Reader
	Credential string // plaintext; vive sólo esta llamada
}

// Response es la respuesta del upstream, lista para copiar al cliente.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder abstrae el reenvío para que los handlers sean testeables.
type Forwarder interface {
	Forward(ctx context.Context, req Request) (*Response, error)
}

// Headers del cliente que se dejan pasar al upstream. Todo lo demás se
// descarta; en particular jamás pasan los headers X-Split-Key-*.
var passthrough = []string{"Content-Type", "Accept", "Accept-Encoding"}

// HTTPForwarder reenvía contra un mapa proveedor→base URL de configuración.
type HTTPForwarder struct {
	BaseURLs map[string]string
	Client   *http.Client
}

// New valida los base URLs con el mismo validador de URLs salientes que
// usan los webhooks y construye el forwarder. Un base URL inseguro es un
// error de configuración y se rechaza en el arranque, no por request.
func New(baseURLs map[string]string, v *safeurl.Validator) (*HTTPForwarder, error) {
	if v == nil {
		v = safeurl.New()
	}
	for provider, base := range baseURLs {
		if err := v.Validate(base); err != nil {
			return nil, fmt.Errorf("forward: base URL de %q: %w", provider, err)
		}
	}
	return &HTTPForwarder{
		BaseURLs: baseURLs,
		Client:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (f *HTTPForwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	base, ok := f.BaseURLs[req.Provider]
	if !ok {
		return nil, fmt.Errorf("forward: proveedor %q sin base URL", req.Provider)
	}

	url := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(req.Path, "/")
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	up, err := http.NewRequestWithContext(ctx, method, url, req.Body)
	if err != nil {
		return nil, err
	}
	for _, h := range passthrough {
		if v := req.Header.Get(h); v != "" {
			up.Header.Set(h, v)
		}
	}
	up.Header.Set("Authorization", "Bearer "+req.Credential)

	start := time.Now()
	resp, err := f.Client.Do(up)
	if err != nil {
		return nil, fmt.Errorf("forward: upstream %s: %w", req.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	logger.Named("forward").Debug("upstream respondió",
		logger.Provider(req.Provider),
		logger.Status(resp.StatusCode),
		logger.Duration(time.Since(start)),
	)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// ReaderFor ayuda a los handlers a reusar el body original del cliente.
func ReaderFor(b []byte) io.Reader { return bytes.NewReader(b) }
