package linking

import "github.com/dropDatabas3/accountlink/internal/ticket"

// OutcomeKind discrimina las variantes de Outcome.
type OutcomeKind int

const (
	KindSignIn OutcomeKind = iota + 1
	KindRedirect
	KindFail
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSignIn:
		return "sign_in"
	case KindRedirect:
		return "redirect"
	case KindFail:
		return "fail"
	}
	return "unknown"
}

// LinkResult acompaña a los Redirect del modo linking.
type LinkResult string

const (
	LinkSuccess LinkResult = "LinkSuccess"
	LinkError   LinkResult = "LinkError"
)

// Outcome es el resultado del callback: SignIn(principal), Redirect(path,
// message) o Fail(err). La capa HTTP lo interpreta.
type Outcome struct {
	Kind OutcomeKind

	// SignIn
	Principal ticket.Principal
	UserID    string

	// Redirect
	Path    string
	Message string
	Link    LinkResult

	// Fail
	Err error
}

func SignIn(userID string, p ticket.Principal) Outcome {
	return Outcome{Kind: KindSignIn, UserID: userID, Principal: p}
}

func Redirect(path, message string, result LinkResult) Outcome {
	return Outcome{Kind: KindRedirect, Path: path, Message: message, Link: result}
}

func Fail(err error) Outcome {
	return Outcome{Kind: KindFail, Err: err}
}
