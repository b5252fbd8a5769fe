package domain

// Category is the closed document taxonomy. The iteration order of
// Categories() is part of the classifier contract: containment checks and
// fuzzy tie-breaks follow it.
type Category string

const (
	CategoryUdostoverenie Category = "Udostoverenie"
	CategoryENT           Category = "ENT"
	CategoryLgota         Category = "Lgota"
	CategoryDiplom        Category = "Diplom"
	CategoryPrivivka      Category = "Privivka"
	CategoryMedSpravka    Category = "MedSpravka"
	CategoryUnclassified  Category = "Unclassified"
)

// Categories returns the classifiable categories in their fixed iteration
// order. Unclassified is the fallback and is never matched directly.
func Categories() []Category {
	return []Category{
		CategoryUdostoverenie,
		CategoryENT,
		CategoryLgota,
		CategoryDiplom,
		CategoryPrivivka,
		CategoryMedSpravka,
	}
}

func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryUdostoverenie, CategoryENT, CategoryLgota, CategoryDiplom,
		CategoryPrivivka, CategoryMedSpravka, CategoryUnclassified:
		return Category(s), true
	}
	return "", false
}

// DefaultKeywords is the built-in keyword table. Keyword lists are ordered
// and compared lowercase; a deployment may override the table via the
// keywords config file, decided once at startup.
func DefaultKeywords() map[Category][]string {
	return map[Category][]string{
		CategoryUdostoverenie: {"удостоверение", "id"},
		CategoryENT: {
			"сертификат",
			"тестирования",
			"тестілеу",
			"тестируемого",
			"набранные баллы",
		},
		CategoryLgota:  {"льгота", "инвалид", "многодетная"},
		CategoryDiplom: {"диплом", "аттестат", "бакалавр", "магистр"},
		CategoryPrivivka: {
			"прививка",
			"прививочный паспорт",
			"вакцинирование",
			"инфекция",
		},
		CategoryMedSpravka: {
			"медицинская справка",
			"справка",
			"медицинский",
			"туберкулез",
			"полиомелит",
			"гепатит",
			"вич",
			"спид",
			"карта ребенка",
			"дегельминтизация",
			"клинический анализ крови",
			"анализ крови",
			"анализ мочи",
			"моча",
			"кровь",
			"флюорография",
			"флюорографическое обследование",
			"флюорография легких",
		},
	}
}
