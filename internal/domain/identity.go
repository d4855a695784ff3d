package domain

import (
	"fmt"
	"strconv"
)

// IdentityKind is the scope a blacklist or lock is keyed on.
type IdentityKind string

const (
	IdentityUser IdentityKind = "user"
	IdentityChat IdentityKind = "chat"
)

// Valid reports whether k is a known identity kind.
func (k IdentityKind) Valid() bool {
	return k == IdentityUser || k == IdentityChat
}

// Identity is a requester: a single user in private interactions, or a
// whole chat in group interactions.
type Identity struct {
	Kind  IdentityKind `json:"kind"`
	Value int64        `json:"value"`
}

// UserIdentity returns the identity of a private requester.
func UserIdentity(userID int64) Identity {
	return Identity{Kind: IdentityUser, Value: userID}
}

// ChatIdentity returns the identity of a group chat.
func ChatIdentity(chatID int64) Identity {
	return Identity{Kind: IdentityChat, Value: chatID}
}

// ResolveIdentity picks the chat for group events and the user otherwise.
// Parameters:
//   - userID: sender of the event.
//   - chatID: chat the event happened in.
//   - isGroup: true when the chat is a group or supergroup.
//
// Returns:
//   - Identity: scope for blacklist and delivery history.
func ResolveIdentity(userID, chatID int64, isGroup bool) Identity {
	if isGroup {
		return ChatIdentity(chatID)
	}
	return UserIdentity(userID)
}

// LockChatID returns the chat component of a lock key. Private
// interactions are stored with chat 0, as the bot always did.
func LockChatID(chatID int64, isGroup bool) int64 {
	if isGroup {
		return chatID
	}
	return 0
}

// String renders the identity as "kind:value" for logs.
func (i Identity) String() string {
	return fmt.Sprintf("%s:%s", i.Kind, strconv.FormatInt(i.Value, 10))
}

// Validate checks that the identity can be used as a store key.
func (i Identity) Validate() error {
	if !i.Kind.Valid() {
		return fmt.Errorf("unknown identity kind %q", i.Kind)
	}
	return nil
}

// Language is one of the two meme language tracks.
type Language string

const (
	// LanguagePrimary is the English track.
	LanguagePrimary Language = "eng"
	// LanguageSecondary is the Russian track.
	LanguageSecondary Language = "rus"
)

// ParseLanguage accepts the stored codes plus a few common aliases.
// An empty string resolves to LanguagePrimary.
func ParseLanguage(s string) (Language, error) {
	switch s {
	case "", "eng", "en", "english", "primary":
		return LanguagePrimary, nil
	case "rus", "ru", "russian", "secondary":
		return LanguageSecondary, nil
	default:
		return "", fmt.Errorf("unknown language %q", s)
	}
}

// Opposite returns the other language track. The bot offers memes in the
// language opposite to the interface language by default.
func (l Language) Opposite() Language {
	if l == LanguageSecondary {
		return LanguagePrimary
	}
	return LanguageSecondary
}

// Requester is the sender of one interaction.
type Requester struct {
	UserID  int64 `json:"user_id"`
	ChatID  int64 `json:"chat_id"`
	IsGroup bool  `json:"is_group"`
}

// Identity returns the scope the requester's deliveries are recorded under.
func (r Requester) Identity() Identity {
	return ResolveIdentity(r.UserID, r.ChatID, r.IsGroup)
}

// LockKey returns the (user, chat) pair of the requester's action lock.
func (r Requester) LockKey() (userID, chatID int64) {
	return r.UserID, LockChatID(r.ChatID, r.IsGroup)
}
