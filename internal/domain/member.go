package domain

// Member is a read-only view of a participant for APIs.
// No transport or lifecycle logic here.
type Member struct {
	ID        UserID           `json:"id"`
	Name      string           `json:"name"`
	IsLocal   bool             `json:"is_local"`
	Status    ConnectionStatus `json:"status"`
	Speaking  bool             `json:"speaking"`
	Producers int              `json:"producers"`
	Consumers int              `json:"consumers"`
}
