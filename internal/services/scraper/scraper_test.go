package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const investorTableHead = `<thead>
<tr><th rowspan="2">Type</th><th colspan="3">Institution</th><th colspan="3">Foreign</th><th colspan="3">Local</th><th rowspan="2">Total</th></tr>
<tr><th>Buy</th><th>Sell</th><th>Net</th><th>Buy</th><th>Sell</th><th>Net</th><th>Buy</th><th>Sell</th><th>Net</th></tr>
</thead>`

const investorTableHTML = `
<html><body>
<table>
` + investorTableHead + `
<tbody>
<tr><td>Morning</td><td>1,000.00</td><td>900.00</td><td>+100.00</td><td>2,000.00</td><td>2,100.00</td><td>-100.00</td><td>500.00</td><td>500.00</td><td>0.00</td><td>3,500.00</td></tr>
<tr><td>Total *</td><td>11,650.25</td><td>10,000.00</td><td>+1,650.25</td><td>20,000.50</td><td>21,200.75</td><td>-1,200.25</td><td>5,549.25</td><td>5,999.25</td><td>-450.00</td><td>37,200.00</td></tr>
</tbody>
</table>
</body></html>`

// Same figures as investorTableHTML with each category's net column first;
// the header alone says which cell is which.
const reorderedTableHTML = `
<html><body>
<table>
<thead>
<tr><th rowspan="2">Type</th><th colspan="3">Institution</th><th colspan="3">Foreign</th><th colspan="3">Local</th><th rowspan="2">Total</th></tr>
<tr><th>Net</th><th>Buy</th><th>Sell</th><th>Net</th><th>Buy</th><th>Sell</th><th>Net</th><th>Buy</th><th>Sell</th></tr>
</thead>
<tbody>
<tr><td>Total *</td><td>+1,650.25</td><td>11,650.25</td><td>10,000.00</td><td>-1,200.25</td><td>20,000.50</td><td>21,200.75</td><td>-450.00</td><td>5,549.25</td><td>5,999.25</td><td>37,200.00</td></tr>
</tbody>
</table>
</body></html>`

const marketSummaryHTML = `
<html><body>
<div class="row info"><div>IndexPerformance</div><div></div></div>
<div class="row info"><div>SET Index </div><div>1,376.45</div></div>
<div class="row info"><div>Market Cap * </div><div>16,054,123</div></div>
</body></html>`

func newTestScraper(t *testing.T, handler http.HandlerFunc) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := New(Config{
		MarketSummaryURL: srv.URL + "/mkt/marketsummary.do?market=%s",
		InvestorTableURL: srv.URL + "/tfx/investortypetrading.do",
		RowLabel:         "Total",
		Timeout:          2 * time.Second,
	})
	return s.WithClock(func() time.Time {
		return time.Date(2024, time.June, 10, 13, 0, 0, 0, time.UTC)
	})
}

func TestFetchInvestorFlows(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(investorTableHTML))
	})

	flows, err := s.FetchInvestorFlows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), flows.Date)
	assert.Equal(t, 11650.25, flows.Buy["FundVal"])
	assert.Equal(t, 10000.00, flows.Sell["FundVal"])
	assert.Equal(t, 1650.25, flows.Net["FundVal"])
	assert.Equal(t, -1200.25, flows.Net["ForeignVal"])
	assert.Equal(t, -450.00, flows.Net["CustomerVal"])
}

func TestFetchInvestorFlows_Observations(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(investorTableHTML))
	})

	flows, err := s.FetchInvestorFlows(context.Background())
	require.NoError(t, err)

	net := flows.NetObservation()
	assert.Len(t, net.Values, 3)
	assert.Equal(t, 1650.25, net.Values["FundValNet"])
	assert.Equal(t, -1200.25, net.Values["ForeignValNet"])

	full := flows.FullObservation()
	assert.Len(t, full.Values, 9)
	assert.Equal(t, 20000.50, full.Values["ForeignValBuy"])
	assert.Equal(t, 5999.25, full.Values["CustomerValSell"])
}

func TestFetchInvestorFlows_HeaderOrderOverridesPosition(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(reorderedTableHTML))
	})

	flows, err := s.FetchInvestorFlows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 11650.25, flows.Buy["FundVal"])
	assert.Equal(t, 10000.00, flows.Sell["FundVal"])
	assert.Equal(t, 1650.25, flows.Net["FundVal"])
	assert.Equal(t, 20000.50, flows.Buy["ForeignVal"])
	assert.Equal(t, -1200.25, flows.Net["ForeignVal"])
	assert.Equal(t, 5999.25, flows.Sell["CustomerVal"])
	assert.Equal(t, -450.00, flows.Net["CustomerVal"])
}

func TestFetchInvestorFlows_MissingHeader(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table><tbody>
			<tr><td>Total</td><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td><td>8</td><td>9</td><td>10</td></tr>
		</tbody></table></body></html>`))
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestFetchInvestorFlows_IncompleteHeaderGroup(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>
<thead><tr><th>Type</th><th>Buy</th><th>Sell</th><th>Buy</th><th>Sell</th><th>Net</th></tr></thead>
<tbody><tr><td>Total</td><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td></tr></tbody>
</table></body></html>`))
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestFetchInvestorFlows_MissingRowLabel(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>` + investorTableHead + `<tbody>
			<tr><td>Morning</td><td>1</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td><td>8</td><td>9</td><td>10</td></tr>
		</tbody></table></body></html>`))
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestFetchInvestorFlows_NonNumericCell(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>` + investorTableHead + `<tbody>
			<tr><td>Total</td><td>n/a</td><td>2</td><td>3</td><td>4</td><td>5</td><td>6</td><td>7</td><td>8</td><td>9</td><td>10</td></tr>
		</tbody></table></body></html>`))
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestFetchInvestorFlows_ShortRow(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table>` + investorTableHead + `<tbody>
			<tr><td>Total</td><td>1</td><td>2</td></tr>
		</tbody></table></body></html>`))
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestFetchInvestorFlows_UpstreamDown(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := s.FetchInvestorFlows(context.Background())
	assert.Error(t, err)
}

func TestFetchMarketInfo(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketSummaryHTML))
	})

	info, err := s.FetchMarketInfo(context.Background(), "SET")
	require.NoError(t, err)
	assert.Equal(t, "1,376.45", info["SETIndex"])
	assert.Equal(t, "16,054,123", info["MarketCap"])
	assert.NotContains(t, info, "IndexPerformance")
}

func TestFetchMarketInfo_EmptyPage(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body></body></html>`))
	})

	_, err := s.FetchMarketInfo(context.Background(), "SET")
	assert.ErrorIs(t, err, ErrUpstreamParse)
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("+1,234.56")
	require.NoError(t, err)
	assert.Equal(t, 1234.56, v)

	v, err = parseValue("-12,000")
	require.NoError(t, err)
	assert.Equal(t, -12000.0, v)

	_, err = parseValue("")
	assert.ErrorIs(t, err, ErrUpstreamParse)
}
