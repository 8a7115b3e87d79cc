package simplepublish

import (
	"context"
	"net/mail"
	"strings"
)

// User operations. These follow the same validate-then-persist discipline as
// the post write path; the capability names are fixed rather than schema
// driven because accounts are not a registered content type.
const (
	capCreateUsers = "create_users"
	capEditUsers   = "edit_users"
	capDeleteUsers = "delete_users"
	capListUsers   = "list_users"
)

func (s *service) CreateUser(ctx context.Context, actor int64, req CreateUserRequest) (int64, error) {
	if !s.gate.Allowed(ctx, actor, capCreateUsers, 0) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to create users")
	}

	login := sanitizeLogin(req.Login)
	if login == "" {
		return 0, NewError(CodeInvalidArgument, "cannot create a user with an empty login name")
	}
	if req.Password == "" {
		return 0, NewError(CodeInvalidArgument, "password cannot be empty")
	}
	if err := validateEmail(req.Email); err != nil {
		return 0, err
	}

	if _, err := s.repo.GetUserByLogin(ctx, login); err == nil {
		return 0, NewError(CodeConflict, "username already exists")
	}
	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return 0, NewError(CodeConflict, "email address already exists")
	}

	role := req.Role
	if role == "" {
		role = s.registry.Defaults().Role
	}
	if !s.registry.ValidRole(role) {
		return 0, NewError(CodeInvalidArgument, "invalid role %q", role)
	}

	user := &User{
		Login:       login,
		Password:    req.Password,
		Email:       req.Email,
		Role:        role,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		URL:         req.URL,
		DisplayName: login,
		Registered:  s.now(),
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return 0, WrapError(CodeInternal, err, "create user")
	}
	if id == 0 {
		return 0, NewError(CodeInternal, "operation failed")
	}
	return id, nil
}

func (s *service) EditUser(ctx context.Context, actor int64, req EditUserRequest) (int64, error) {
	// Actors may edit themselves; anyone else requires the edit capability.
	if req.ID != actor && !s.gate.Allowed(ctx, actor, capEditUsers, req.ID) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to edit this user")
	}

	user, err := s.repo.GetUser(ctx, req.ID)
	if err != nil {
		return 0, WrapError(CodeNotFound, err, "invalid user ID %d", req.ID)
	}

	// The login is fixed at creation.
	if req.Login != nil && sanitizeLogin(*req.Login) != user.Login {
		return 0, NewError(CodeInvalidArgument, "username cannot be changed")
	}

	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return 0, err
		}
		if other, err := s.repo.GetUserByEmail(ctx, *req.Email); err == nil && other.ID != user.ID {
			return 0, NewError(CodeConflict, "email address already exists")
		}
		user.Email = *req.Email
	}

	if req.Role != nil {
		if !s.gate.Allowed(ctx, actor, capEditUsers, req.ID) {
			return 0, NewError(CodeUnauthorized, "you are not allowed to change roles")
		}
		if !s.registry.ValidRole(*req.Role) {
			return 0, NewError(CodeInvalidArgument, "invalid role %q", *req.Role)
		}
		user.Role = *req.Role
	}

	if req.Password != nil {
		if *req.Password == "" {
			return 0, NewError(CodeInvalidArgument, "password cannot be empty")
		}
		user.Password = *req.Password
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.URL != nil {
		user.URL = *req.URL
	}
	if req.Nickname != nil {
		user.Nickname = *req.Nickname
	}
	if req.NiceName != nil {
		user.NiceName = *req.NiceName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}

	if req.ContactMethods != nil {
		for key := range req.ContactMethods {
			if !s.registry.ValidContactMethod(key) {
				return 0, NewError(CodeInvalidArgument, "invalid contact method %q", key)
			}
		}
		if user.ContactMethods == nil {
			user.ContactMethods = make(map[string]string, len(req.ContactMethods))
		}
		for key, value := range req.ContactMethods {
			user.ContactMethods[key] = value
		}
	}

	id, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return 0, WrapError(CodeInternal, err, "update user")
	}
	return id, nil
}

func (s *service) DeleteUsers(ctx context.Context, actor int64, ids []int64) ([]int64, error) {
	if !s.gate.Allowed(ctx, actor, capDeleteUsers, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to delete users")
	}
	// Validate the whole batch before removing anyone.
	for _, id := range ids {
		if id == actor {
			return nil, NewError(CodeInvalidArgument, "you cannot delete yourself")
		}
		if _, err := s.repo.GetUser(ctx, id); err != nil {
			return nil, WrapError(CodeNotFound, err, "invalid user ID %d", id)
		}
	}

	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		ok, err := s.repo.DeleteUser(ctx, id)
		if err != nil {
			return deleted, WrapError(CodeInternal, err, "delete user %d", id)
		}
		if ok {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (s *service) GetUser(ctx context.Context, actor int64, id int64) (map[string]any, error) {
	if id != actor && !s.gate.Allowed(ctx, actor, capEditUsers, id) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to view this user")
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, WrapError(CodeNotFound, err, "invalid user ID %d", id)
	}
	return s.projectUser(user), nil
}

func (s *service) ListUsers(ctx context.Context, actor int64, filter UserFilter) ([]map[string]any, error) {
	if !s.gate.Allowed(ctx, actor, capListUsers, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to list users")
	}
	if filter.Role != "" && !s.registry.ValidRole(filter.Role) {
		return nil, NewError(CodeInvalidArgument, "invalid role %q", filter.Role)
	}
	users, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, WrapError(CodeInternal, err, "list users")
	}
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, s.projectUser(u))
	}
	return out, nil
}

// projectUser serializes an account. Every registered contact method is
// present in the output, empty string when unset, so clients see a stable
// shape.
func (s *service) projectUser(user *User) map[string]any {
	contacts := make(map[string]string)
	for _, key := range s.registry.ContactMethods() {
		contacts[key] = user.ContactMethods[key]
	}
	return map[string]any{
		"user_id":      user.ID,
		"username":     user.Login,
		"email":        user.Email,
		"role":         user.Role,
		"display_name": user.DisplayName,
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"nickname":     user.Nickname,
		"nicename":     user.NiceName,
		"bio":          user.Bio,
		"url":          user.URL,
		"registered":   user.Registered.Format(projectionTimeLayout),
		"contacts":     contacts,
	}
}

// sanitizeLogin trims whitespace and lowercases the login name.
func sanitizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

func validateEmail(email string) error {
	if email == "" {
		return NewError(CodeInvalidArgument, "email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return WrapError(CodeInvalidArgument, err, "invalid email address %q", email)
	}
	return nil
}
