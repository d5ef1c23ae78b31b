package pokeapi

// Pokemon is the subset of the PokeAPI pokemon resource the gateway serves.
type Pokemon struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	Weight int    `json:"weight"`
}

type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Page is one page of a paginated listing. Next and Previous are absolute
// URLs, nil at either end.
type Page struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Session struct {
	Token string `json:"token"`
}
