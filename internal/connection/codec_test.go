package connection

import (
	"errors"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantErr    error
		wantSymbol string
		wantPrice  string // "" means absent
		wantChange string
		wantPct    string
		wantVolume string
	}{
		{
			name:       "flat frame",
			frame:      `{"symbol":"AAPL","price":189.25,"change":1.5,"percent_change":0.8}`,
			wantSymbol: "AAPL",
			wantPrice:  "189.25",
			wantChange: "1.5",
			wantPct:    "0.8",
		},
		{
			name:       "volume",
			frame:      `{"symbol":"MSFT","price":410.1,"change":-2.3,"percent_change":-0.56,"volume":1200}`,
			wantSymbol: "MSFT",
			wantPrice:  "410.1",
			wantChange: "-2.3",
			wantPct:    "-0.56",
			wantVolume: "1200",
		},
		{
			name:       "data object is not unwrapped",
			frame:      `{"symbol":"AMZN","data":{"price":150}}`,
			wantSymbol: "AMZN",
		},
		{
			name:       "string prices",
			frame:      `{"symbol":"^GSPC","price":"5000.12"}`,
			wantSymbol: "^GSPC",
			wantPrice:  "5000.12",
		},
		{
			name:       "null price is absent",
			frame:      `{"symbol":"TSLA","price":null,"change":3}`,
			wantSymbol: "TSLA",
			wantChange: "3",
		},
		{name: "not json", frame: "pong", wantErr: ErrMalformedFrame},
		{name: "array", frame: `[{"symbol":"AAPL"}]`, wantErr: ErrMalformedFrame},
		{name: "bad number", frame: `{"symbol":"AAPL","price":"n/a"}`, wantErr: ErrMalformedFrame},
		{name: "missing symbol", frame: `{"price":1}`, wantErr: ErrMissingSymbol},
		{name: "blank symbol", frame: `{"symbol":"  ","price":1}`, wantErr: ErrMissingSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if u.Symbol != tt.wantSymbol {
				t.Errorf("symbol = %q, want %q", u.Symbol, tt.wantSymbol)
			}

			checks := []struct {
				field string
				valid bool
				got   string
				want  string
			}{
				{"price", u.Price.Valid, u.Price.Decimal.String(), tt.wantPrice},
				{"change", u.Change.Valid, u.Change.Decimal.String(), tt.wantChange},
				{"percent_change", u.PercentChange.Valid, u.PercentChange.Decimal.String(), tt.wantPct},
				{"volume", u.Volume.Valid, u.Volume.Decimal.String(), tt.wantVolume},
			}
			for _, c := range checks {
				if c.want == "" {
					if c.valid {
						t.Errorf("%s: expected absent, got %s", c.field, c.got)
					}
					continue
				}
				if !c.valid {
					t.Errorf("%s: expected %s, got absent", c.field, c.want)
					continue
				}
				if c.got != c.want {
					t.Errorf("%s = %s, want %s", c.field, c.got, c.want)
				}
			}
		})
	}
}

func TestDecode_Timestamp(t *testing.T) {
	want := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		frame string
		want  time.Time
	}{
		{"epoch seconds", `{"symbol":"AAPL","timestamp":1705329000}`, want},
		{"epoch millis", `{"symbol":"AAPL","timestamp":1705329000000}`, want},
		{"numeric string", `{"symbol":"AAPL","timestamp":"1705329000"}`, want},
		{"rfc3339", `{"symbol":"AAPL","timestamp":"2024-01-15T14:30:00Z"}`, want},
		{"naive iso", `{"symbol":"AAPL","timestamp":"2024-01-15T14:30:00"}`, want},
		{"absent", `{"symbol":"AAPL"}`, time.Time{}},
		{"null", `{"symbol":"AAPL","timestamp":null}`, time.Time{}},
		{"garbage is ignored", `{"symbol":"AAPL","timestamp":"yesterday"}`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !u.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", u.Timestamp, tt.want)
			}
		})
	}
}
