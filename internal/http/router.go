package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig bundles the handlers and middleware the router mounts. Nil
// handlers leave their routes unmounted, which keeps handler tests small.
type RouterConfig struct {
	Circulation  *CirculationHandler
	Reservations *ReservationHandler
	Penalties    *PenaltyHandler
	Members      *MemberHandler
	Catalog      *CatalogHandler
	Visits       *VisitHandler
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter assembles the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if cfg.Circulation != nil {
		r.Post("/loans", cfg.Circulation.Borrow)
		r.Get("/loans/{loanID}", cfg.Circulation.Get)
		r.Post("/loans/{loanID}/return", cfg.Circulation.Return)
		r.Get("/members/{memberID}/loans", cfg.Circulation.ListForMember)
	}

	if cfg.Reservations != nil {
		r.Post("/reservations", cfg.Reservations.Create)
		// Register /expired before the wildcard so it never parses as an ID.
		r.Get("/reservations/expired", cfg.Reservations.ListExpired)
		r.Get("/reservations/{reservationID}", cfg.Reservations.Get)
		r.Delete("/reservations/{reservationID}", cfg.Reservations.Cancel)
		r.Get("/books/{bookID}/reservations", cfg.Reservations.ListForBook)
	}

	if cfg.Penalties != nil {
		r.Get("/penalties/{penaltyID}", cfg.Penalties.Get)
		r.Post("/penalties/{penaltyID}/pay", cfg.Penalties.Pay)
		r.Get("/members/{memberID}/penalties", cfg.Penalties.Statement)
	}

	if cfg.Members != nil {
		r.Get("/members", cfg.Members.List)
		r.Post("/members", cfg.Members.Create)
		r.Get("/members/{memberID}", cfg.Members.Get)
		r.Put("/members/{memberID}", cfg.Members.Update)
		r.Delete("/members/{memberID}", cfg.Members.Delete)
	}

	if cfg.Catalog != nil {
		r.Get("/books", cfg.Catalog.ListBooks)
		r.Post("/books", cfg.Catalog.CreateBook)
		r.Get("/books/{bookID}", cfg.Catalog.GetBook)
		r.Put("/books/{bookID}", cfg.Catalog.UpdateBook)
		r.Delete("/books/{bookID}", cfg.Catalog.DeleteBook)
		r.Get("/books/{bookID}/copies", cfg.Catalog.ListCopies)
		r.Post("/books/{bookID}/copies", cfg.Catalog.AddCopy)
		r.Get("/copies/{copyID}", cfg.Catalog.GetCopy)
		r.Post("/copies/{copyID}/retire", cfg.Catalog.RetireCopy)
	}

	if cfg.Visits != nil {
		r.Post("/members/{memberID}/checkin", cfg.Visits.CheckIn)
		r.Post("/members/{memberID}/checkout", cfg.Visits.CheckOut)
		r.Get("/members/{memberID}/visits", cfg.Visits.History)
	}

	return r
}
