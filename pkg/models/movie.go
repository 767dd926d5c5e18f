package models

import "fmt"

// Movie is a film of the trilogies.
type Movie struct {
	MovieID                    string  `json:"_id"`
	Name                       string  `json:"name"`
	RuntimeInMinutes           int     `json:"runtimeInMinutes"`
	BudgetInMillions           float64 `json:"budgetInMillions"`
	BoxOfficeRevenueInMillions float64 `json:"boxOfficeRevenueInMillions"`
	AcademyAwardNominations    int     `json:"academyAwardNominations"`
	AcademyAwardWins           int     `json:"academyAwardWins"`
	RottenTomatoesScore        float64 `json:"rottenTomatoesScore"`
}

var movieFields = []string{
	"_id",
	"name",
	"runtimeInMinutes",
	"budgetInMillions",
	"boxOfficeRevenueInMillions",
	"academyAwardNominations",
	"academyAwardWins",
	"rottenTomatoesScore",
}

// ID implements Item.
func (m Movie) ID() string {
	return m.MovieID
}

// UnmarshalJSON decodes a movie document, rejecting documents with missing fields.
func (m *Movie) UnmarshalJSON(data []byte) error {
	type plain Movie
	var v plain
	if err := decodeStrict(data, &v, movieFields...); err != nil {
		return fmt.Errorf("decode movie: %w", err)
	}
	*m = Movie(v)
	return nil
}

func (m Movie) String() string {
	return fmt.Sprintf("%s (Id: %s)", m.Name, m.MovieID)
}
