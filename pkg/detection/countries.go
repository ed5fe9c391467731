package detection

// countryCurrency maps ISO 3166-1 alpha-2 country codes to the currency
// customarily billed there. Shared by the geolocation and language steps.
var countryCurrency = map[string]string{
	"US": "USD",
	"CA": "CAD",
	"GB": "GBP",
	"AU": "AUD",
	"NZ": "NZD",
	"JP": "JPY",
	"CN": "CNY",
	"IN": "INR",
	"BR": "BRL",
	"CH": "CHF",
	"LI": "CHF",
	"TR": "TRY",
	"RU": "RUB",

	// Eurozone
	"AT": "EUR",
	"BE": "EUR",
	"CY": "EUR",
	"DE": "EUR",
	"EE": "EUR",
	"ES": "EUR",
	"FI": "EUR",
	"FR": "EUR",
	"GR": "EUR",
	"HR": "EUR",
	"IE": "EUR",
	"IT": "EUR",
	"LT": "EUR",
	"LU": "EUR",
	"LV": "EUR",
	"MT": "EUR",
	"NL": "EUR",
	"PT": "EUR",
	"SI": "EUR",
	"SK": "EUR",
}
