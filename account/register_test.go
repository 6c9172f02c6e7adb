package account_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-crm-client/account"
	"github.com/jrsteele09/go-crm-client/apierror"
)

func validForm() account.Registration {
	return account.Registration{
		Username:        "newuser",
		Email:           "new@example.com",
		Password:        "longenough1",
		ConfirmPassword: "longenough1",
	}
}

func TestService_Register(t *testing.T) {
	t.Run("success does not log in", func(t *testing.T) {
		f := setup(t, &fakeAPI{})

		require.NoError(t, f.service.Register(context.Background(), validForm()))
		require.Equal(t, int64(1), f.api.registerCalls.Load())
		require.False(t, f.store.IsAuthenticated())
	})

	t.Run("short username", func(t *testing.T) {
		f := setup(t, &fakeAPI{})
		form := validForm()
		form.Username = "ab"

		err := f.service.Register(context.Background(), form)
		require.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
		require.Contains(t, apierror.From(err).Fields["username"], "at least 3")
		require.Equal(t, int64(0), f.api.registerCalls.Load())
	})

	t.Run("bad email shape", func(t *testing.T) {
		f := setup(t, &fakeAPI{})
		form := validForm()
		form.Email = "not-an-email"

		err := f.service.Register(context.Background(), form)
		require.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
		require.Contains(t, apierror.From(err).Fields, "email")
		require.Equal(t, int64(0), f.api.registerCalls.Load())
	})

	t.Run("short password and mismatched confirmation both reported", func(t *testing.T) {
		f := setup(t, &fakeAPI{})
		form := validForm()
		form.Password = "abc"
		form.ConfirmPassword = "xyz"

		err := f.service.Register(context.Background(), form)
		require.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
		apiErr := apierror.From(err)
		require.Contains(t, apiErr.Fields["password"], "at least 8")
		require.Equal(t, "passwords do not match", apiErr.Fields["confirm_password"])

		// Local validation failures never reach the network.
		require.Equal(t, int64(0), f.api.registerCalls.Load())
	})

	t.Run("server field errors surface per field", func(t *testing.T) {
		f := setup(t, &fakeAPI{
			registerStatus: http.StatusBadRequest,
			registerBody:   `{"username":["A user with that username already exists."]}`,
		})

		err := f.service.Register(context.Background(), validForm())
		require.True(t, apierror.IsKind(err, apierror.KindValidationFailed))
		require.Equal(t, "A user with that username already exists.", apierror.From(err).Fields["username"])
	})
}
