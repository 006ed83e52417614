package example

type QuestionStatus string

const (
	QuestionStatusClarifying QuestionStatus = "clarifying"
	QuestionStatusAnswered   QuestionStatus = "answered"
)

type Role string

const (
	RoleAsker   Role = "asker"
	RolePartner Role = "partner"
)

type Question struct {
	Status QuestionStatus
	Text   string
}

type ReflectionLog struct {
	Role Role
}

func bad() {
	q := &Question{}
	q.Status = "anwsered" // want "enum field Status assigned string literal"

	l := &ReflectionLog{}
	l.Role = "mediator" // want "enum field Role assigned string literal"

	_ = Question{Status: "red_flag"} // want "enum field Status assigned string literal"
}

func good() {
	q := &Question{}
	q.Status = QuestionStatusAnswered // OK: using constant
	q.Text = "why so quiet?"          // OK: not an enum

	l := &ReflectionLog{Role: RolePartner}
	_ = l
}

func alsoGood() {
	// OK: Variable, not literal
	status := QuestionStatusClarifying
	q := &Question{Status: status}
	_ = q
}
