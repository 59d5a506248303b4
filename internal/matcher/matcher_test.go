package matcher

import (
	"form-agent/internal/entity"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registrationForm() []entity.FieldDescriptor {
	return []entity.FieldDescriptor{
		{ID: "first-name", Type: "text", TagName: "input", Visible: true, Label: "First name"},
		{Name: "lastName", Type: "text", TagName: "input", Visible: true},
		{ID: "user-email-1", Type: "text", TagName: "input", Visible: true, Placeholder: "Your email"},
		{ID: "pwd", Type: "password", TagName: "input", Visible: true},
		{ID: "pwd-confirm", Type: "password", TagName: "input", Visible: true},
		{Name: "mobile", Type: "tel", TagName: "input", Visible: true},
		{Placeholder: "Street Address", Type: "textarea", TagName: "textarea", Visible: true},
	}
}

func TestMatch_Roles(t *testing.T) {
	fields := registrationForm()

	tests := []struct {
		role entity.Role
		want int
	}{
		{role: entity.RoleFirstName, want: 0},
		{role: entity.RoleLastName, want: 1},
		{role: entity.RoleEmail, want: 2},
		{role: entity.RolePassword, want: 3},
		{role: entity.RoleConfirmPassword, want: 4},
		{role: entity.RolePhone, want: 5},
		{role: entity.RoleAddress, want: 6},
		// "user-email-1" contains "user": first hit in document order
		{role: entity.RoleUsername, want: 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, ok := Match(tt.role, fields)
			require.True(t, ok)
			assert.Equal(t, fields[tt.want], got)
		})
	}
}

func TestMatch_EmailByPlaceholder(t *testing.T) {
	field := entity.FieldDescriptor{ID: "user-email-1", Type: "text", Placeholder: "Email address", TagName: "input", Visible: true}

	got, ok := Match(entity.RoleEmail, []entity.FieldDescriptor{field})
	require.True(t, ok)
	assert.Equal(t, "user-email-1", got.ID)
}

func TestMatch_PasswordVersusConfirm(t *testing.T) {
	fields := []entity.FieldDescriptor{
		{ID: "confirmPassword", Type: "password", TagName: "input", Visible: true},
		{ID: "password", Type: "password", TagName: "input", Visible: true},
	}

	pwd, ok := Match(entity.RolePassword, fields)
	require.True(t, ok)
	assert.Equal(t, "password", pwd.ID)

	confirm, ok := Match(entity.RoleConfirmPassword, fields)
	require.True(t, ok)
	assert.Equal(t, "confirmPassword", confirm.ID)
}

func TestMatch_ConfirmByNameIsCaseInsensitive(t *testing.T) {
	fields := []entity.FieldDescriptor{
		{Name: "Password_Confirm", Type: "password", TagName: "input", Visible: true},
	}

	_, ok := Match(entity.RolePassword, fields)
	assert.False(t, ok)

	got, ok := Match(entity.RoleConfirmPassword, fields)
	require.True(t, ok)
	assert.Equal(t, "Password_Confirm", got.Name)
}

func TestMatch_SkipsHiddenFields(t *testing.T) {
	fields := []entity.FieldDescriptor{
		{ID: "email-honeypot", Type: "email", TagName: "input", Visible: false},
		{ID: "email", Type: "email", TagName: "input", Visible: true},
	}

	got, ok := Match(entity.RoleEmail, fields)
	require.True(t, ok)
	assert.Equal(t, "email", got.ID)
}

func TestMatch_NoMatch(t *testing.T) {
	_, ok := Match(entity.RolePhone, []entity.FieldDescriptor{{ID: "email", Type: "email", Visible: true}})
	assert.False(t, ok)

	_, ok = Match(entity.RoleEmail, nil)
	assert.False(t, ok)
}

func TestMatch_CustomNeverMatches(t *testing.T) {
	fields := registrationForm()

	_, ok := Match(entity.RoleCustom, fields)
	assert.False(t, ok)
}

func TestLocator_Priority(t *testing.T) {
	tests := []struct {
		name    string
		field   entity.FieldDescriptor
		want    string
		wantErr error
	}{
		{
			name:  "id wins",
			field: entity.FieldDescriptor{ID: "email", Name: "email", Placeholder: "Email", TagName: "input"},
			want:  "#email",
		},
		{
			name:  "id that is not a css identifier",
			field: entity.FieldDescriptor{ID: "1:email", TagName: "input"},
			want:  `[id="1:email"]`,
		},
		{
			name:  "name next",
			field: entity.FieldDescriptor{Name: "lastName", Placeholder: "Last", TagName: "input"},
			want:  `input[name="lastName"]`,
		},
		{
			name:  "name on a select keeps its tag",
			field: entity.FieldDescriptor{Name: "country", TagName: "select"},
			want:  `select[name="country"]`,
		},
		{
			name:  "placeholder last",
			field: entity.FieldDescriptor{Placeholder: `Your "nick"`, TagName: "input"},
			want:  `input[placeholder="Your \"nick\""]`,
		},
		{
			name:    "nothing usable",
			field:   entity.FieldDescriptor{Type: "text", TagName: "input"},
			wantErr: ErrNoSelector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locator(tt.field)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, role := range entity.Roles {
		got, err := ParseRole(string(role))
		require.NoError(t, err)
		assert.Equal(t, role, got)
		assert.NotNil(t, PredicateFor(role))
	}

	_, err := ParseRole("middleName")
	assert.Error(t, err)
}
