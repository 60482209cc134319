// Package components is the closed enum of Blaze component and command
// numbers the game client uses, fixed by the client itself (spec.md §6,
// Appendix A). Grounded on original_source/core/src/blaze/components.rs.
package components

// Component identifies the subsystem a packet targets.
type Component uint16

const (
	Authentication    Component = 0x1
	GameManager       Component = 0x4
	Redirector        Component = 0x5
	Stats             Component = 0x7
	Util              Component = 0x9
	Messaging         Component = 0xF
	AssociationLists  Component = 0x19
	GameReporting     Component = 0x1C
	UserSessions      Component = 0x7802
)

// Authentication commands.
const (
	AuthLogin          uint16 = 0x1
	AuthSilentLogin    uint16 = 0x32
	AuthLogout         uint16 = 0xB
	AuthListUserEntitlements2 uint16 = 0x1D
	AuthGetLegalDocsInfo uint16 = 0x16
	AuthGetTermsOfServiceConent uint16 = 0x16C
	AuthOriginLogin    uint16 = 0x98
	AuthCreateAccount  uint16 = 0xA
)

// GameManager commands.
const (
	GameManagerCreateGame            uint16 = 0x1
	GameManagerAdvanceGameState      uint16 = 0x2
	GameManagerSetGameSettings       uint16 = 0x3
	GameManagerSetPlayerCapacity     uint16 = 0x4
	GameManagerRemovePlayer          uint16 = 0x5
	GameManagerSetGameAttributes     uint16 = 0x6
	GameManagerSetPlayerAttributes   uint16 = 0x7
	GameManagerJoinGame              uint16 = 0x8
	GameManagerAdminListOperation    uint16 = 0xA
	GameManagerRemovePlayerFromBannedList uint16 = 0xB
	GameManagerStartMatchmaking      uint16 = 0x11
	GameManagerCancelMatchmaking     uint16 = 0x12
	GameManagerUpdateMeshConnection  uint16 = 0x1B
	GameManagerGetGameListSnapshot   uint16 = 0x26
)

// GameManager notifications (server → client, Notify packets).
const (
	NotifyGameCreated            uint16 = 0x1
	NotifyPlayerJoining          uint16 = 0x2
	NotifyJoinGameFailed         uint16 = 0x3
	NotifyPlayerRemoved          uint16 = 0x6
	NotifyGameSetup              uint16 = 0xC
	NotifyAdminListChange        uint16 = 0xD
	NotifyGameStateChange        uint16 = 0xE
	NotifyGameSettingsChange     uint16 = 0xF
	NotifyGameAttribChange       uint16 = 0x10
	NotifyPlayerAttribChange     uint16 = 0x11
	NotifyPlayerCapacityChange   uint16 = 0x14
	NotifyHostMigrationFinished  uint16 = 0x12
	NotifyHostMigrationStart     uint16 = 0x13
	NotifyPlayerJoinCompleted    uint16 = 0x15
	NotifyGamePlayerStateChange  uint16 = 0x16
)

// UserSessions notifications.
const (
	NotifyUserAdded    uint16 = 0x1
	NotifyUserUpdated  uint16 = 0x5
	NotifyUserRemoved  uint16 = 0x6
)

// Util commands.
const (
	UtilPreAuth         uint16 = 0x7
	UtilPostAuth        uint16 = 0x8
	UtilFetchClientConfig uint16 = 0x1
	UtilSuspendUserPing uint16 = 0x9
	UtilUserSettingsLoadAll uint16 = 0x17
	UtilSetClientMetrics uint16 = 0x2E
	UtilSetClientState  uint16 = 0x2F
	UtilGetTelemetryServer uint16 = 0x12
	UtilGetPingSiteInfo uint16 = 0x28
)

// Redirector commands.
const (
	RedirectorGetServerInstance uint16 = 0x1
)

// Stats commands.
const (
	StatsGetLeaderboardEntityCount uint16 = 0x1
	StatsGetLeaderboard            uint16 = 0x4
	StatsGetCenteredLeaderboard    uint16 = 0x5
	StatsGetFilteredLeaderboard    uint16 = 0x6
	StatsGetLeaderboardGroup       uint16 = 0x7
)

// Messaging commands.
const (
	MessagingSendMessage uint16 = 0x1
	MessagingFetchMessages uint16 = 0x2
)

// AssociationLists commands.
const (
	AssociationListsGetLists uint16 = 0x1
)

// GameReporting commands.
const (
	GameReportingSubmitGameReport uint16 = 0x1
)
