package domain

// Customer is the profile row created alongside a customer account.
type Customer struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	CustomerCode string `json:"customer_code"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Status       string `json:"status"`
}

// Customer profile statuses.
const (
	CustomerStatusActive   = "ACTIVE"
	CustomerStatusInactive = "INACTIVE"
)

// Address is a customer's service address captured at signup.
type Address struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	AddressLine string `json:"address_line"`
	Apartment   string `json:"apartment,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
}
