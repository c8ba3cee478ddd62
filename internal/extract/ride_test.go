package extract

import (
	"testing"
	"time"
)

const grabFoodFixture = `Your GrabFood E-Receipt

Order from: Bun Cha Huong Lien
Order time: 28 Aug 2025 19:05
Subtotal: ₫72,000
Delivery fee: ₫15,000
Total: ₫87,000
`

const grabRideFixture = `Your Grab E-Receipt

Date: 28/08/2025 08:40
Booking GrabBike
Fare: ₫30,000
Total paid: ₫32,000
`

func TestRideParser_FoodReceipt(t *testing.T) {
	p := &rideParser{}
	tx := p.Parse("Your GrabFood E-Receipt", grabFoodFixture, time.Now())
	if tx == nil {
		t.Fatal("Parse returned nil for a food receipt")
	}

	// The total paid, not the subtotal or a fee line.
	if tx.Amount != 87000 {
		t.Errorf("Amount = %v, want 87000 (final total)", tx.Amount)
	}
	if tx.Currency != "VND" {
		t.Errorf("Currency = %q, want VND", tx.Currency)
	}
	if tx.Merchant != "Bun Cha Huong Lien" {
		t.Errorf("Merchant = %q", tx.Merchant)
	}
	if tx.Category != CategoryFood {
		t.Errorf("Category = %q, want Food", tx.Category)
	}

	wantDate := time.Date(2025, 8, 28, 19, 5, 0, 0, time.FixedZone("UTC+7", 7*3600))
	if !tx.TransactionDate.Equal(wantDate) {
		t.Errorf("TransactionDate = %v, want %v", tx.TransactionDate, wantDate)
	}
}

func TestRideParser_RideReceipt(t *testing.T) {
	p := &rideParser{}
	tx := p.Parse("Your Grab E-Receipt", grabRideFixture, time.Now())
	if tx == nil {
		t.Fatal("Parse returned nil for a ride receipt")
	}
	if tx.Amount != 32000 {
		t.Errorf("Amount = %v, want 32000", tx.Amount)
	}
	if tx.Category != CategoryTransport {
		t.Errorf("Category = %q, want Transport", tx.Category)
	}
}

func TestRideParser_PendingOrderDiscarded(t *testing.T) {
	p := &rideParser{}
	body := "Your order has been placed and is being prepared.\nTotal: ₫87,000\n"
	if tx := p.Parse("GrabFood order update", body, time.Now()); tx != nil {
		t.Errorf("pending order must be discarded, got %+v", tx)
	}
}

func TestRideParser_MissingTotal(t *testing.T) {
	p := &rideParser{}
	body := "Order from: Somewhere\nSubtotal: ₫72,000\n"
	if tx := p.Parse("Your GrabFood E-Receipt", body, time.Now()); tx != nil {
		t.Errorf("expected nil without a total, got %+v", tx)
	}
}

func TestRideParser_Matches(t *testing.T) {
	p := &rideParser{}
	tests := []struct {
		sender, subject string
		want            bool
	}{
		{"no-reply@grab.com", "anything", true},
		{"x@example.com", "Your GrabFood E-Receipt", true},
		{"x@example.com", "Team standup notes", false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.sender, tt.subject, ""); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.sender, tt.subject, got, tt.want)
		}
	}
}
