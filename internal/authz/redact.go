package authz

import "github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"

// RedactUser projects a user for the given viewer. Admins see every field;
// everyone else sees third-party contact fields stripped. A viewer always
// sees their own contact details.
func RedactUser(viewer Principal, u models.User) models.UserView {
	view := models.UserView{
		ID:       u.ID,
		FullName: u.FullName,
		Role:     u.Role,
		Active:   u.Active,
	}
	if viewer.IsAdmin() || viewer.ID == u.ID {
		view.Email = u.Email
		view.Phone = u.Phone
	}
	return view
}

// RedactUsers applies RedactUser over a slice.
func RedactUsers(viewer Principal, users []models.User) []models.UserView {
	views := make([]models.UserView, len(users))
	for i, u := range users {
		views[i] = RedactUser(viewer, u)
	}
	return views
}

// RedactContact blanks contact fields in place unless the viewer is an
// admin or the subject themselves. Used for denormalised parent/teacher
// columns on detail rows.
func RedactContact(viewer Principal, subjectID string, email, phone *string) {
	if viewer.IsAdmin() || viewer.ID == subjectID {
		return
	}
	*email = ""
	*phone = ""
}
