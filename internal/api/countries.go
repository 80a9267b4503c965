package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/companionlabs/companion/internal/register"
)

// supportedLocales are the languages the country catalog can be localized
// into. English is the fallback.
var supportedLocales = language.NewMatcher([]language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Portuguese,
	language.Japanese,
})

// CountryHandler serves the country-code-to-name tables the registration
// flow's location step loads.
type CountryHandler struct {
	homeCountry string
}

// NewCountryHandler creates a country handler that excludes the given home
// country from the international table.
func NewCountryHandler(homeCountry string) *CountryHandler {
	return &CountryHandler{homeCountry: homeCountry}
}

// RegisterRoutes registers the two table variants. The plain table backs the
// international branch, so it omits the home country; the full table carries
// every entry.
func (h *CountryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/static/json/countries.json", h.International)
	r.Get("/static/json/countries_all.json", h.All)
}

// International serves the catalog without the home country.
func (h *CountryHandler) International(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.homeCountry)
}

// All serves the complete catalog.
func (h *CountryHandler) All(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

func (h *CountryHandler) serve(w http.ResponseWriter, r *http.Request, exclude string) {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil {
		tags = nil
	}
	tag, _, _ := supportedLocales.Match(tags...)

	table, err := register.CountryTable(tag, exclude)
	if err != nil {
		slog.Error("Failed to build country table", "error", err)
		Error(w, http.StatusInternalServerError, "country table unavailable")
		return
	}
	JSON(w, http.StatusOK, table)
}
