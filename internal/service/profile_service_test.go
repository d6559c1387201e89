package service

import (
	"context"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/canteen/pkg/api"
)

func TestPreferences(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	ctx := context.Background()

	empty, err := alice.profile.GetPreferences(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if len(empty.Msg.Preferences.Favourites) != 0 {
		t.Errorf("Favourites = %v, want none", empty.Msg.Preferences.Favourites)
	}

	saved, err := alice.profile.SavePreferences(ctx, connect.NewRequest(&api.SavePreferencesRequest{
		Favourites: []string{"Nasi Lemak", " Teh Tarik ", "", "Nasi Lemak"},
	}))
	if err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	want := []string{"Nasi Lemak", "Teh Tarik"}
	if fmt.Sprint(saved.Msg.Preferences.Favourites) != fmt.Sprint(want) {
		t.Errorf("Favourites = %v, want %v", saved.Msg.Preferences.Favourites, want)
	}

	got, err := alice.profile.GetPreferences(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if fmt.Sprint(got.Msg.Preferences.Favourites) != fmt.Sprint(want) || got.Msg.Preferences.UpdatedAt == 0 {
		t.Errorf("preferences = %+v", got.Msg.Preferences)
	}

	// Preferences are per user.
	other, err := bob.profile.GetPreferences(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		t.Fatalf("GetPreferences failed: %v", err)
	}
	if len(other.Msg.Preferences.Favourites) != 0 {
		t.Errorf("bob sees %v", other.Msg.Preferences.Favourites)
	}

	t.Run("too many favourites", func(t *testing.T) {
		many := make([]string, maxFavourites+1)
		for i := range many {
			many[i] = fmt.Sprintf("item %d", i)
		}
		_, err := alice.profile.SavePreferences(ctx, connect.NewRequest(&api.SavePreferencesRequest{Favourites: many}))
		wantKind(t, err, connect.CodeInvalidArgument, "ValidationError")
	})
}
