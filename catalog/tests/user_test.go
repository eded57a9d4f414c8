package tests

import (
	"errors"
	"fmt"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if err == nil {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "wrong@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "password"})
		if err == nil {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestListUsersIsAdminOnly(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.listUsers()
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot list users: %v", err)
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}

	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestFirstUserBecomesAdmin(t *testing.T) {
	env := setupTestEnvNoSeed(t)

	first, err := env.newUser("first")
	if err != nil {
		t.Fatal(err)
	}

	info, err := first.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if !info.Admin {
		t.Fatal("first user should be promoted to admin automatically")
	}

	second, err := env.newUser("second")
	if err != nil {
		t.Fatal(err)
	}

	info, err = second.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Admin {
		t.Fatal("second user should not be admin")
	}

	anon := env.newClient()
	err = anon.Get("/user/info").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unauthenticated request should be rejected: %v", err)
	}
}
