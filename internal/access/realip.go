package access

import (
	"errors"
	"net"
	"net/http"
	"strings"
)

var ErrUnresolvable = errors.New("access: unresolvable client address")

// ClientIP resuelve la dirección real del cliente.
// X-Forwarded-For / X-Real-IP se honran SOLO cuando el deployment declaró
// confiar en un proxy frontal; si no, un cliente podría forjar su dirección
// y saltarse una regla deny.
// Una dirección irresoluble es error: este stage es fail-closed.
func ClientIP(r *http.Request, trustProxy bool) (string, error) {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			// Primer hop de la cadena = cliente original.
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String(), nil
			}
			return "", ErrUnresolvable
		}
		if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
			if ip := net.ParseIP(xr); ip != nil {
				return ip.String(), nil
			}
			return "", ErrUnresolvable
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr sin puerto (tests, sockets raros): intentar directo.
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String(), nil
	}
	return "", ErrUnresolvable
}
