package uitemplates

// ActiveUserParams holds information about the active user.
type ActiveUserParams struct {
	// LoggedIn is true if the current user is logged in.
	LoggedIn bool

	// Email is the user's email.
	Email string

	Reviewer bool
}

// PageParams is embedded in every page's parameters; the base layout reads
// it.
type PageParams struct {
	ActiveUser ActiveUserParams

	// UserError is shown at the top of the page.
	UserError string
}
