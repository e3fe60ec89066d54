package keywords

// Default returns the built-in Oreo keyword set used when no keywords file is
// configured. The bare "oreo" alias folds unqualified brand mentions into
// Oreo Original.
func Default() *Set {
	products := []Keyword{
		{Canonical: "Oreo Original", Aliases: []string{"oreo"}},
		{Canonical: "Oreo Double Stuf"},
		{Canonical: "Oreo Thins"},
		{Canonical: "Oreo Golden"},
		{Canonical: "Oreo Mega Stuf"},
		{Canonical: "Oreo Cakesters"},
		{Canonical: "Oreo Bites"},
	}

	flavorNames := []string{
		"chocolate", "vanilla", "mint", "strawberry", "birthday cake",
		"peanut butter", "caramel", "red velvet", "golden", "lemon",
		"matcha", "coffee", "cinnamon", "pumpkin", "eggnog",
		"candy corn", "cherry cola", "coconut", "cookies and cream",
		"dark chocolate", "dulce de leche", "hazelnut", "irish cream",
		"key lime pie", "maple creme", "orange", "pistachio",
		"raspberry", "salted caramel", "s'mores", "tiramisu",
		"turkey stuffing", "watermelon", "winter", "chocolate mint",
	}
	flavors := make([]Keyword, 0, len(flavorNames))
	for _, name := range flavorNames {
		flavors = append(flavors, Keyword{Canonical: name})
	}

	set, err := New(1, products, flavors)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return set
}
