// Package dispatch ejecuta cada comando/query de negocio con el esquema
// validar-y-después-procesar, gated por el CurrentUser de la request.
//
// Los handlers se registran explícitamente al arrancar; después de Seal el
// registro es de sólo lectura y el dispatch es un lookup por RequestType.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoHandler       = errors.New("dispatch: no handler registered")
	ErrDuplicate       = errors.New("dispatch: handler already registered")
	ErrSealed          = errors.New("dispatch: registry is sealed")
	ErrHandlerMismatch = errors.New("dispatch: handler registered with different types")
)

// Request identifica su tipo para el lookup del handler.
type Request interface {
	RequestType() string
}

// Response es embebida por todas las respuestas. Éxito ⇔ Errors vacío;
// los warnings no afectan el éxito.
type Response struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r Response) Success() bool { return len(r.Errors) == 0 }

// Result permite leer la Response embebida desde el tipo genérico.
func (r Response) Result() Response { return r }

func (r *Response) AddError(msg string)   { r.Errors = append(r.Errors, msg) }
func (r *Response) AddWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// Responder lo satisface cualquier struct que embeba Response.
type Responder interface {
	Result() Response
}

// Handler agrupa el Validator (opcional) y el Processor de un tipo de request.
type Handler[Req Request, Resp Responder] struct {
	Validator func(ctx context.Context, req Req, user CurrentUser) Resp
	Processor func(ctx context.Context, req Req, user CurrentUser) (Resp, error)
}

// Registry mapea RequestType -> handler.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	handlers map[string]any
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]any)}
}

// Register agrega el handler para el tipo de Req. Falla si ya existe o si el
// registro está sellado.
func Register[Req Request, Resp Responder](r *Registry, h Handler[Req, Resp]) error {
	var zero Req
	typ := zero.RequestType()
	if h.Processor == nil {
		return fmt.Errorf("dispatch: %s: nil processor", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, ok := r.handlers[typ]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, typ)
	}
	r.handlers[typ] = h
	return nil
}

// MustRegister es Register para el wiring de arranque.
func MustRegister[Req Request, Resp Responder](r *Registry, h Handler[Req, Resp]) {
	if err := Register(r, h); err != nil {
		panic(err)
	}
}

// Seal congela el registro.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Types lista los tipos registrados (diagnóstico).
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

func (r *Registry) lookup(typ string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	return h, ok
}

// Pipeline es el punto de entrada de la lógica de negocio.
type Pipeline struct {
	reg *Registry
}

func NewPipeline(reg *Registry) *Pipeline {
	reg.Seal()
	return &Pipeline{reg: reg}
}

// Dispatch corre Validator y, sólo si no devolvió errores, el Processor una vez.
// Un rechazo del validator no es error: vuelve la Response con sus Errors.
func Dispatch[Req Request, Resp Responder](ctx context.Context, p *Pipeline, req Req) (Resp, error) {
	var zero Resp
	raw, ok := p.reg.lookup(req.RequestType())
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoHandler, req.RequestType())
	}
	h, ok := raw.(Handler[Req, Resp])
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrHandlerMismatch, req.RequestType())
	}

	user := CurrentUserFrom(ctx)
	if h.Validator != nil {
		v := h.Validator(ctx, req, user)
		if !v.Result().Success() {
			return v, nil
		}
	}
	return h.Processor(ctx, req, user)
}
