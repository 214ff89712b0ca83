package playlist

import "net/http"

// apiError carries the HTTP status a failure maps to alongside a stable
// machine-readable code for clients.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func errNotFound(msg string) *apiError {
	return &apiError{status: http.StatusNotFound, code: "NotFound", msg: msg}
}

func errAccessDenied(msg string) *apiError {
	return &apiError{status: http.StatusForbidden, code: "AccessDenied", msg: msg}
}

func errForbiddenEdit(msg string) *apiError {
	return &apiError{status: http.StatusForbidden, code: "ForbiddenEdit", msg: msg}
}

func errDuplicateTrack(msg string) *apiError {
	return &apiError{status: http.StatusConflict, code: "DuplicateTrack", msg: msg}
}

func errDuplicateCollaborator(msg string) *apiError {
	return &apiError{status: http.StatusConflict, code: "DuplicateCollaborator", msg: msg}
}

func errInvalidReorderSet(msg string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: "InvalidReorderSet", msg: msg}
}

func errMissingField(msg string) *apiError {
	return &apiError{status: http.StatusBadRequest, code: "MissingField", msg: msg}
}

func errConflict(msg string) *apiError {
	return &apiError{status: http.StatusConflict, code: "ConflictException", msg: msg}
}
