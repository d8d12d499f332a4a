package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/chatbot-auth/internal/logging"
	"github.com/redmonkez12/chatbot-auth/internal/user"
)

type reconcilerFixture struct {
	users      *memUserStore
	chats      *fakeChats
	avatars    *fakeAvatars
	reconciler *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	users := newMemUserStore()
	chats := &fakeChats{users: users}
	avatars := &fakeAvatars{}
	return &reconcilerFixture{
		users:      users,
		chats:      chats,
		avatars:    avatars,
		reconciler: NewReconciler(users, NewPasswordHasher(), chats, avatars, logging.NewNopLogger()),
	}
}

var googleProfile = &OAuthProfile{
	Email:   "G@Example.com",
	Name:    "Grace Hopper",
	Picture: "https://lh3.googleusercontent.com/a/photo",
}

func TestReconcile_CreatesNewAccount(t *testing.T) {
	f := newReconcilerFixture()

	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	require.NoError(t, err)

	assert.Equal(t, ReconcileCreated, result.Status)
	require.NotNil(t, result.User)
	assert.Equal(t, "g@example.com", result.User.Email)
	assert.Equal(t, "g", result.User.Username)
	assert.Equal(t, "Grace Hopper", result.User.FullName)
	assert.Equal(t, user.MethodGoogle, result.User.Method)
	assert.True(t, result.User.EmailVerified)
	require.NotNil(t, result.User.AvatarURL)
	assert.Equal(t, googleProfile.Picture, *result.User.AvatarURL)

	// the unusable secret still hashes like a real password
	assert.True(t, strings.HasPrefix(result.User.PasswordHash, "$argon2id$"))

	assert.Zero(t, f.chats.callCount())
	assert.Len(t, f.users.get(result.User.ID).ChatIDs, 1)
	assert.Equal(t, []scheduledAvatar{{userID: result.User.ID, url: googleProfile.Picture}}, f.avatars.all())
}

func TestReconcile_LinksExistingIdempotently(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	first, err := f.reconciler.Reconcile(ctx, user.MethodGoogle, googleProfile)
	require.NoError(t, err)

	for range 3 {
		again, err := f.reconciler.Reconcile(ctx, user.MethodGoogle, googleProfile)
		require.NoError(t, err)
		assert.Equal(t, ReconcileLinkedExisting, again.Status)
		assert.Equal(t, first.User.ID, again.User.ID)
	}

	assert.Equal(t, 1, f.users.count())
	assert.Zero(t, f.chats.callCount())
	assert.Len(t, f.users.get(first.User.ID).ChatIDs, 1)
	assert.Len(t, f.avatars.all(), 1)
}

func TestReconcile_RejectsOtherMethod(t *testing.T) {
	f := newReconcilerFixture()
	local := f.users.add(&user.User{Email: "g@example.com", Username: "g", Method: user.MethodLocal, PasswordHash: "h"})

	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	require.NoError(t, err)

	assert.Equal(t, ReconcileConflictRejected, result.Status)
	assert.Nil(t, result.User)

	// the local account is untouched
	stored := f.users.get(local.ID)
	assert.Equal(t, user.MethodLocal, stored.Method)
	assert.Equal(t, "h", stored.PasswordHash)
	assert.Zero(t, f.chats.callCount())
	assert.Empty(t, f.avatars.all())
}

func TestReconcile_RepairsMissingChat(t *testing.T) {
	f := newReconcilerFixture()
	existing := f.users.add(&user.User{Email: "g@example.com", Username: "g", Method: user.MethodGoogle})

	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	require.NoError(t, err)

	assert.Equal(t, ReconcileLinkedExisting, result.Status)
	assert.Equal(t, 1, f.chats.callCount())
	assert.Len(t, f.users.get(existing.ID).ChatIDs, 1)
}

func TestReconcile_LostCreateRace(t *testing.T) {
	tests := []struct {
		name       string
		winner     user.Method
		wantStatus ReconcileStatus
	}{
		{name: "same method links", winner: user.MethodGoogle, wantStatus: ReconcileLinkedExisting},
		{name: "other method conflicts", winner: user.MethodLocal, wantStatus: ReconcileConflictRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture()
			f.users.beforeCreate = func(params user.CreateParams) {
				f.users.beforeCreate = nil
				// another request inserts the same email between lookup and insert
				f.users.add(&user.User{Email: params.Email, Username: "winner", Method: tt.winner, ChatIDs: nil})
			}

			result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, 1, f.users.count())
			assert.Empty(t, f.avatars.all())
		})
	}
}

func TestReconcile_UsernameTaken(t *testing.T) {
	f := newReconcilerFixture()
	f.users.takenUsernames["g"] = true

	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	require.NoError(t, err)

	assert.Equal(t, ReconcileCreated, result.Status)
	assert.Regexp(t, `^g_[0-9a-f]{6}$`, result.User.Username)
	assert.Equal(t, 2, f.users.createCalls)
}

func TestReconcile_UsernameRetriesAreBounded(t *testing.T) {
	f := newReconcilerFixture()
	f.users.beforeCreate = func(params user.CreateParams) {
		f.users.mu.Lock()
		f.users.takenUsernames[params.Username] = true
		f.users.mu.Unlock()
	}

	_, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	assert.ErrorIs(t, err, user.ErrDuplicateUsername)
	assert.Equal(t, maxUsernameAttempts, f.users.createCalls)
}

func TestReconcile_InvalidProfile(t *testing.T) {
	f := newReconcilerFixture()

	for _, email := range []string{"", "   ", "no-at-sign"} {
		_, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, &OAuthProfile{Email: email})
		assert.ErrorIs(t, err, ErrInvalidProfile, email)
	}
	assert.Zero(t, f.users.count())
}

func TestReconcile_ChatBootstrapFailureLeavesNoAccount(t *testing.T) {
	f := newReconcilerFixture()
	f.users.firstChatErr = errors.New("chat store down")

	_, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	assert.ErrorIs(t, err, f.users.firstChatErr)
	assert.Zero(t, f.users.count())
	assert.Empty(t, f.avatars.all())

	// the next login creates the account from scratch
	f.users.firstChatErr = nil
	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, googleProfile)
	require.NoError(t, err)
	assert.Equal(t, ReconcileCreated, result.Status)
	assert.Len(t, f.users.get(result.User.ID).ChatIDs, 1)
}

func TestReconcile_NoPictureNoImport(t *testing.T) {
	f := newReconcilerFixture()

	result, err := f.reconciler.Reconcile(context.Background(), user.MethodGoogle, &OAuthProfile{Email: "p@x.com"})
	require.NoError(t, err)

	assert.Nil(t, result.User.AvatarURL)
	assert.Empty(t, f.avatars.all())
}

func TestUsernameFromEmail(t *testing.T) {
	assert.Equal(t, "john.doe", usernameFromEmail("john.doe@example.com"))
	assert.Equal(t, "weird", usernameFromEmail("weird"))
}
