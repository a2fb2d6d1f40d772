// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package bot

// Help texts, one per verb. The room/space texts are parameterized on
// the kind since both share a handler.

const helpMain = `Hello, I'm Strix, a community steward bot.

Available commands:

* ` + "`breakout`" + ` - Create a breakout room
* ` + "`communities`" + ` - List and manage communities
* ` + "`invite`" + ` - Invite one or more users to a room
* ` + "`power`" + ` - Set power levels in rooms
* ` + "`rooms`" + ` - List and manage rooms
* ` + "`spaces`" + ` - List and manage spaces
* ` + "`users`" + ` - List and manage users

More help on commands is available with the command argument ` + "`help`" + `,
for example ` + "`rooms help`" + `.`

const helpBreakout = `Creates a breakout room. Usage:

` + "`breakout TOPIC`" + `

Any text after the breakout command is used as the name of the room.
The requesting user is invited to the new room and made admin. Other
users can react to the bot's response message with any emoji to get
invited to the room.`

const helpCommunities = `List and manage communities.

Note: communities are deprecated upstream; this works only on
homeservers that still serve the groups API.

Without arguments, lists the communities I maintain.

* ` + "`communities create NAME ALIAS TITLE`" + ` - create a community.
  Quote any value containing spaces, for example:
  ` + "`communities create \"My community\" my-community \"The best community\"`" + ``

const helpInvite = `Invite to rooms.

With only a room alias or ID, invites you to that room. To invite
other users, give one or more user IDs after the room:

* ` + "`invite #room:example.com`" + `
* ` + "`invite #room:example.com @user1:example.com @user2:example.org`" + ``

const helpPower = `Set user power in a room. Usage:

` + "`power USER_ID ROOM [LEVEL]`" + `

ROOM is a room alias or ID. LEVEL is ` + "`moderator`" + ` (default) or
` + "`admin`" + `. Setting admin power requires bot admin access.`

const helpUsers = `List and manage users.

* ` + "`users list`" + ` - list registered users (admin only)
* ` + "`users create EMAIL ...`" + ` - create accounts for the given emails (admin only)
* ` + "`users invite EMAIL ...`" + ` - create a one-time signup link per email (coordinator)
* ` + "`users signuplink MAX_SIGNUPS DAYS_VALID`" + ` - create a self-service signup link (coordinator)`

const helpUsersDisabled = `User management is not configured on this instance, sorry.`

const helpSignupDisabled = `Signup links are not configured on this instance, sorry.`

const helpRecreate = `Recreates this room. Usage:

` + "`rooms recreate`" + ` then ` + "`rooms recreate confirm`" + `

Replaces the room with a new room, inviting all members to the new
one. Useful for example when a room has no admins left.`

// roomsHelp builds the rooms/spaces help text for a kind ("room" or
// "space").
func roomsHelp(kind string) string {
	plural := kind + "s"
	return `Maintains ` + plural + `.

Without arguments, lists the ` + plural + ` I maintain.

Subcommands:

* ` + "`" + plural + ` create NAME ALIAS TITLE ENCRYPTED(yes/no) PUBLIC(yes/no)` + "`" + ` - create a ` + kind + `.
  Quote any value containing spaces, for example:
  ` + "`" + plural + ` create "My ` + kind + `" my-alias "The best ` + kind + `" no yes` + "`" + `
* ` + "`" + plural + ` list` + "`" + ` - list tracked ` + plural + `
* ` + "`" + plural + ` list-no-admin` + "`" + ` - list tracked ` + plural + ` where I lack admin power
* ` + "`" + plural + ` recreate [confirm]` + "`" + ` - replace the current ` + kind + ` with a new one
* ` + "`" + plural + ` unlink ROOM` + "`" + ` - stop maintaining a ` + kind + ` (keeps the ` + kind + `)
* ` + "`" + plural + ` unlink-and-leave ROOM` + "`" + ` - stop maintaining and leave`
}
