package scenario

// builtinFixtures is the default payload catalog for the
// currency-conversion target: a valid pool plus one pool per
// adversarial category.
type builtinFixtures struct{}

func (builtinFixtures) Pool(category string) []Fixture {
	return builtinPools[category]
}

var builtinPools = map[string][]Fixture{
	// Valid conversions.
	"": {
		{Payload: `{"from":"USD","to":"EUR","amount":"100.00"}`},
		{Payload: `{"from":"EUR","to":"GBP","amount":"250.50"}`},
		{Payload: `{"from":"GBP","to":"JPY","amount":"19.99"}`},
		{Payload: `{"from":"JPY","to":"USD","amount":"150000"}`},
		{Payload: `{"from":"CHF","to":"USD","amount":"1.00"}`},
		{Payload: `{"from":"USD","to":"CAD","amount":"9999.99"}`},
		{Payload: `{"from":"AUD","to":"NZD","amount":"42.42"}`},
		{Payload: `{"from":"SEK","to":"NOK","amount":"310.75"}`},
	},
	"malformed-amount": {
		{Payload: `{"from":"USD","to":"EUR","amount":"12,34"}`, Severity: "medium"},
		{Payload: `{"from":"USD","to":"EUR","amount":"1e309"}`, Severity: "medium"},
		{Payload: `{"from":"USD","to":"EUR","amount":"abc"}`, Severity: "low"},
		{Payload: `{"from":"USD","to":"EUR","amount":""}`, Severity: "low"},
		{Payload: `{"from":"USD","to":"EUR","amount":"NaN"}`, Severity: "medium"},
	},
	"invalid-currency-code": {
		{Payload: `{"from":"US","to":"EUR","amount":"100"}`, Severity: "low"},
		{Payload: `{"from":"USDX","to":"EUR","amount":"100"}`, Severity: "low"},
		{Payload: `{"from":"","to":"EUR","amount":"100"}`, Severity: "medium"},
		{Payload: `{"from":"XXX","to":"ZZZ","amount":"100"}`, Severity: "medium"},
		{Payload: `{"from":"usd","to":"eur","amount":"100"}`, Severity: "low"},
	},
	"negative-amount": {
		{Payload: `{"from":"USD","to":"EUR","amount":"-100.00"}`, Severity: "medium"},
		{Payload: `{"from":"USD","to":"EUR","amount":"-0.01"}`, Severity: "low"},
		{Payload: `{"from":"USD","to":"EUR","amount":"-1e12"}`, Severity: "high"},
	},
	"precision-abuse": {
		{Payload: `{"from":"USD","to":"EUR","amount":"0.000000000001"}`, Severity: "low"},
		{Payload: `{"from":"USD","to":"EUR","amount":"99.999999999999999"}`, Severity: "medium"},
		{Payload: `{"from":"JPY","to":"USD","amount":"0.5"}`, Severity: "low"},
	},
	"oversized-payload": {
		{Payload: `{"from":"USD","to":"EUR","amount":"100","note":"` + longNote(4096) + `"}`, Severity: "medium"},
		{Payload: `{"from":"USD","to":"EUR","amount":"` + longNote(1024) + `"}`, Severity: "high"},
	},
	"injection": {
		{Payload: `{"from":"USD'; DROP TABLE rates;--","to":"EUR","amount":"100"}`, Severity: "high"},
		{Payload: `{"from":"USD","to":"EUR","amount":"100","callback":"<script>alert(1)</script>"}`, Severity: "high"},
		{Payload: `{"from":"USD","to":{"$gt":""},"amount":"100"}`, Severity: "high"},
		{Payload: "{\"from\":\"USD\",\"to\":\"EUR\",\"amount\":\"100\x00\"}", Severity: "medium"},
	},
}

func longNote(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'A' + byte(i%26)
	}
	return string(b)
}
