package ledgers

// Fixture is a predefined set of ledger rows.
type Fixture interface {
	// Name returns the fixture's descriptive name.
	Name() string

	// Rows returns the cells of each row, in DefaultColumns order.
	Rows() [][]any
}

type fixture struct {
	name string
	rows [][]any
}

func (f *fixture) Name() string   { return f.name }
func (f *fixture) Rows() [][]any { return f.rows }

// Predefined fixtures. Under testutil.ToyArtifacts rows mentioning a refund
// or reimbursement are positive.
var (
	// FixtureMixed has two positive rows with credits 10 and 5.5 around one
	// negative row.
	FixtureMixed Fixture = &fixture{
		name: "Mixed",
		rows: [][]any{
			{"ACME refund", "INV001", 10},
			{"Office supplies payment", "INV002", 99.99},
			{"Travel reimbursement", "INV003", 5.5},
		},
	}

	// FixtureNoMatches has no positive rows.
	FixtureNoMatches Fixture = &fixture{
		name: "NoMatches",
		rows: [][]any{
			{"Wire transfer", "TX-1", 1200},
			{"Monthly fee", "TX-2", 15},
		},
	}

	// FixtureMessyCredit has positive rows whose credit cells are text,
	// blank, or not a number at all.
	FixtureMessyCredit Fixture = &fixture{
		name: "MessyCredit",
		rows: [][]any{
			{"refund one", "R1", " 12.5 "},
			{"refund two", "R2", nil},
			{"refund three", "R3", "n/a"},
			{"refund four", 4417, 7},
		},
	}
)
