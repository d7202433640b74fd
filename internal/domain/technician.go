package domain

// Technician is the profile row created alongside a technician account.
// Technicians are onboarded by operations staff, so their profile starts
// verified and carries no address.
type Technician struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	IsVerified bool   `json:"is_verified"`
}
