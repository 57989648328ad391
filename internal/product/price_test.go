package product

import (
	"testing"

	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "120.00", want: "120"},
		{input: "120,00", want: "120"},
		{input: " 120,5 ", want: "120.5"},
		{input: "0", want: "0"},
		{input: ",5", want: "0.5"},
		{input: "7.", want: "7"},
		{input: "12a", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: "1,2,3", wantErr: true},
		{input: ".", wantErr: true},
		{input: "", wantErr: true},
		{input: "1e5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parsePrice(tt.input)
			if tt.wantErr {
				if err == nil || err.Code != model.ErrCodeInvalidPrice {
					t.Fatalf("parsePrice(%q) err = %v, want INVALID_PRICE", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePrice(%q) がエラーを返した: %v", tt.input, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("parsePrice(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAcceptsPriceInput(t *testing.T) {
	accepted := []string{"", "1", "12,", "12.3", ",", "0,99"}
	for _, s := range accepted {
		if !AcceptsPriceInput(s) {
			t.Errorf("AcceptsPriceInput(%q) = false, want true", s)
		}
	}
	rejected := []string{"a", "1a", "1.2.", "1,2,3", "-", " 1"}
	for _, s := range rejected {
		if AcceptsPriceInput(s) {
			t.Errorf("AcceptsPriceInput(%q) = true, want false", s)
		}
	}
}

func TestValidate(t *testing.T) {
	if _, err := Validate("", "1"); err == nil || err.Code != model.ErrCodeRequiredFields {
		t.Errorf("empty name: err = %v, want REQUIRED_FIELDS", err)
	}
	if _, err := Validate("X", " "); err == nil || err.Code != model.ErrCodeRequiredFields {
		t.Errorf("blank price: err = %v, want REQUIRED_FIELDS", err)
	}
	price, err := Validate("X", "3,50")
	if err != nil {
		t.Fatalf("Validate がエラーを返した: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("price = %s, want 3.5", price)
	}
}
