package middlewares

import "net/http"

// Middleware decora un http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain envuelve h con los middlewares dados. El primero de la lista queda
// más afuera: es el primero en interceptar el request y el último en ver la
// respuesta.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	// Se aplica en orden inverso para que mws[0] termine siendo el exterior.
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
