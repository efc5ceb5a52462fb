// Package safeurl clasifica URLs salientes como seguras o no (anti-SSRF).
//
// Se invoca DOS veces en el ciclo de vida de un webhook: al registrar la URL
// y de nuevo inmediatamente antes de cada dispatch. El set de direcciones
// "seguras" puede cambiar entre registro y envío (DNS rebinding, cambios de
// infraestructura), así que la validación de registro nunca se asume vigente.
package safeurl

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const maxURLLength = 2048

// Reasons estables para métricas y logs.
const (
	ReasonEmpty      = "empty"
	ReasonLength     = "length"
	ReasonUnparsable = "unparsable"
	ReasonProtocol   = "protocol"
	ReasonHost       = "host"
	ReasonTraversal  = "traversal"
	ReasonLoopback   = "loopback"
	ReasonMetadata   = "metadata"
	ReasonPrivate    = "private"
	ReasonReserved   = "reserved"
	ReasonResolution = "resolution"
)

// Error lleva la razón estable del rechazo.
type Error struct {
	Reason string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unsafe url (%s): %s", e.Reason, e.Detail)
}

func unsafe(reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

// defaultMetadataHosts: endpoints de metadata cloud conocidos. La lista es
// explícita y extensible por config porque aparecen proveedores nuevos.
var defaultMetadataHosts = []string{
	"169.254.169.254",        // AWS / Azure / GCP / DO
	"metadata.google.internal",
	"metadata.goog",
	"100.100.100.200",        // Alibaba Cloud
	"metadata.azure.com",
	"fd00:ec2::254",          // AWS IMDS IPv6
	"169.254.170.2",          // AWS ECS task metadata
}

// Validator valida URLs de destino.
type Validator struct {
	// AllowInsecure permite http:// (solo para modo desarrollo explícito).
	AllowInsecure bool

	// MetadataHosts extiende la lista default de endpoints de metadata.
	MetadataHosts []string

	// LookupIP, si está seteado, resuelve hostnames y exige que TODAS las
	// direcciones resueltas sean públicas. Se usa en la validación
	// pre-dispatch (defensa contra DNS rebinding); en registro puede quedar
	// nil para no bloquear en DNS.
	LookupIP func(host string) ([]net.IP, error)
}

func New() *Validator { return &Validator{} }

// Validate devuelve nil si la URL es segura para llamar, o *Error con la
// razón del rechazo.
func (v *Validator) Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return unsafe(ReasonEmpty, "empty input")
	}
	// Bound de recursos antes de cualquier parsing con forma de red.
	if len(raw) > maxURLLength {
		return unsafe(ReasonLength, fmt.Sprintf("%d chars > %d", len(raw), maxURLLength))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return unsafe(ReasonUnparsable, "parse failed")
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !v.AllowInsecure {
			return unsafe(ReasonProtocol, "http not allowed in production")
		}
	default:
		return unsafe(ReasonProtocol, "scheme "+u.Scheme)
	}

	rawHost := u.Host
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return unsafe(ReasonHost, "missing host")
	}

	// Trucos de confusión de parser: traversal y NUL codificado en el host.
	// Defensa adicional, no reemplazo del chequeo estructurado de abajo.
	if strings.Contains(rawHost, "..") || strings.Contains(rawHost, "%00") ||
		strings.ContainsRune(rawHost, 0x00) {
		return unsafe(ReasonTraversal, "suspicious host characters")
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return unsafe(ReasonLoopback, "localhost")
	}
	for _, m := range v.metadataHosts() {
		if host == m {
			return unsafe(ReasonMetadata, host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		// IP literal: además de los chequeos por nombre, tiene que ser una
		// dirección pública ruteable — un atacante puede saltarse reglas de
		// hostname con un literal privado crudo.
		if err := checkIP(ip); err != nil {
			return err
		}
		return nil
	}

	if v.LookupIP != nil {
		ips, err := v.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return unsafe(ReasonResolution, "host did not resolve")
		}
		for _, ip := range ips {
			if err := checkIP(ip); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) metadataHosts() []string {
	if len(v.MetadataHosts) == 0 {
		return defaultMetadataHosts
	}
	out := make([]string, 0, len(defaultMetadataHosts)+len(v.MetadataHosts))
	out = append(out, defaultMetadataHosts...)
	for _, h := range v.MetadataHosts {
		out = append(out, strings.ToLower(strings.TrimSpace(h)))
	}
	return out
}

// reservedV4 cubre rangos IPv4 reservados/special-use que no caen en los
// predicados de net.IP: documentación/TEST-NET, benchmarking, 0/8, CGNAT,
// IETF protocol assignments y clase E.
var reservedV4 = mustCIDRs(
	"0.0.0.0/8",
	"100.64.0.0/10",  // CGNAT
	"192.0.0.0/24",   // IETF protocol assignments
	"192.0.2.0/24",   // TEST-NET-1
	"198.18.0.0/15",  // benchmarking
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24", // TEST-NET-3
	"240.0.0.0/4",    // clase E + broadcast
)

var reservedV6 = mustCIDRs(
	"fc00::/7",      // ULA
	"2001:db8::/32", // documentación
)

func mustCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// checkIP rechaza toda dirección no pública.
func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return unsafe(ReasonLoopback, ip.String())
	case ip.IsUnspecified():
		return unsafe(ReasonReserved, "unspecified address")
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// Incluye 169.254.169.254 aunque no estuviera en la lista de metadata.
		return unsafe(ReasonMetadata, "link-local "+ip.String())
	case ip.IsPrivate():
		return unsafe(ReasonPrivate, ip.String())
	case ip.IsMulticast():
		return unsafe(ReasonReserved, "multicast "+ip.String())
	}
	if v4 := ip.To4(); v4 != nil {
		for _, n := range reservedV4 {
			if n.Contains(v4) {
				return unsafe(ReasonReserved, ip.String())
			}
		}
	} else {
		for _, n := range reservedV6 {
			if n.Contains(ip) {
				return unsafe(ReasonReserved, ip.String())
			}
		}
	}
	// Chequeo independiente "pública y ruteable".
	if !ip.IsGlobalUnicast() {
		return unsafe(ReasonReserved, ip.String())
	}
	return nil
}
