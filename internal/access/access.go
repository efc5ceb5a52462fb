// Package access evalúa reglas allow/deny por dirección de origen.
package access

import (
	"context"
)

type Kind string

const (
	KindAllow Kind = "allow"
	KindDeny  Kind = "deny"
)

// Rule es una regla de acceso administrada por la superficie externa;
// acá solo se consulta.
type Rule struct {
	Address string
	Kind    Kind
	Reason  string
	Active  bool
}

// RuleStore es el rule store externo.
type RuleStore interface {
	RulesFor(ctx context.Context, address string) ([]Rule, error)
}

// Decision es el veredicto del gate para una dirección.
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluate aplica el orden fijo: cualquier deny activo gana; si no, un allow
// activo habilita; sin regla alguna el default es permisivo (open).
//
// El default-allow es una decisión de producto deliberada, no un bug:
// el gate bloquea direcciones explícitamente vetadas y no pretende ser una
// allowlist cerrada. Cambiarlo a default-deny es una conversación de
// stakeholders, no un edit silencioso.
func Evaluate(rules []Rule) Decision {
	for _, r := range rules {
		if r.Active && r.Kind == KindDeny {
			return Decision{Allowed: false, Reason: r.Reason}
		}
	}
	for _, r := range rules {
		if r.Active && r.Kind == KindAllow {
			return Decision{Allowed: true, Reason: r.Reason}
		}
	}
	return Decision{Allowed: true, Reason: "no rule (default open)"}
}

// Check resuelve las reglas de una dirección y las evalúa.
func Check(ctx context.Context, rs RuleStore, address string) (Decision, error) {
	rules, err := rs.RulesFor(ctx, address)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(rules), nil
}
