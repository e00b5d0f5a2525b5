package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// CommandHandler is the signature for game command implementations.
type CommandHandler func(g *Game, d *Descriptor, args string)

// Command represents a registered game command.
type Command struct {
	Name    string
	Handler CommandHandler
	Help    string
}

// InitCommands registers all available game commands.
func InitCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(name, help string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Handler: handler, Help: help}
	}

	// Information
	register("look", "look around the lodge", cmdLook)
	register("who", "list connected characters", cmdWho)
	register("help", "list commands, or help <topic>", cmdHelp)
	register("score", "show your character", cmdScore)

	// Beastmaster
	register("talk", "speak to the Beastmaster", cmdTalk)
	register("use", "use an item, e.g. 'use whistle'", cmdUse)

	// Pets
	register("pet", "show your active pet", cmdPet)
	register("abandon", "abandon your active pet", cmdAbandon)
	register("stable", "stable your active pet", cmdStable)
	register("unstable", "take a pet out of the stable: unstable <slot>", cmdUnstable)

	register("quit", "disconnect", cmdQuit)

	return cmds
}

// DispatchCommand parses and dispatches a command from a logged-in character.
func DispatchCommand(g *Game, d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	if g.Metrics != nil {
		g.Metrics.CommandProcessed()
	}
	DebugLog("[%s] player %d: %s", d.ID, d.Player, input)

	// Menu picks are bare numbers.
	if n, err := strconv.Atoi(input); err == nil {
		cmdPick(g, d, n)
		return
	}

	// Split command and args
	var cmdName, args string
	if spaceIdx := strings.IndexByte(input, ' '); spaceIdx >= 0 {
		cmdName = input[:spaceIdx]
		args = strings.TrimSpace(input[spaceIdx+1:])
	} else {
		cmdName = input
	}
	lower := strings.ToLower(cmdName)

	// Dot commands belong to the Beastmaster module.
	if strings.HasPrefix(lower, ".") {
		if lower == ".commands" {
			cmdDotCommands(g, d)
			return
		}
		if g.Module != nil {
			if fn, ok := g.Module.Commands()[lower[1:]]; ok {
				o := g.online[d.Player]
				fn(g.ctx, g.player(o), args)
				return
			}
		}
		d.Send("Huh?  (Type \".commands\" for dot commands.)")
		return
	}

	if cmd, ok := g.Commands[lower]; ok {
		cmd.Handler(g, d, args)
		return
	}
	d.Send("Huh?  (Type \"help\" for help.)")
}

func cmdLook(g *Game, d *Descriptor, _ string) {
	g.showLook(d, g.online[d.Player])
}

func cmdWho(g *Game, d *Descriptor, _ string) {
	d.Send(g.whoListing())
}

func (g *Game) whoListing() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-12s %5s %8s\n", "Character", "Class", "Level", "On For"))
	names := make([]*gamedb.Character, 0, len(g.online))
	for _, o := range g.online {
		names = append(names, o.char)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name < names[j].Name })
	now := g.now()
	for _, c := range names {
		var on time.Duration
		for _, dd := range g.Conns.GetByPlayer(c.GUID) {
			if t := now.Sub(dd.ConnTime); t > on {
				on = t
			}
		}
		sb.WriteString(fmt.Sprintf("%-16s %-12s %5d %8s\n", c.Name, c.Class, c.Level, formatOnFor(on)))
	}
	sb.WriteString(fmt.Sprintf("%d character(s) online.", len(names)))
	return sb.String()
}

// formatOnFor renders a session length as "HH:MM", with a day count once it
// passes a day.
func formatOnFor(d time.Duration) string {
	mins := int(d / time.Minute)
	h, m := mins/60%24, mins%60
	if days := mins / (24 * 60); days > 0 {
		return fmt.Sprintf("%dd %02d:%02d", days, h, m)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func cmdHelp(g *Game, d *Descriptor, args string) {
	if args = strings.TrimSpace(args); args != "" {
		text := ""
		if g.Help != nil {
			text = g.Help.Lookup(args)
		}
		if text == "" {
			d.Send(fmt.Sprintf("No entry for '%s'.", args))
			return
		}
		d.Send(text)
		return
	}
	names := make([]string, 0, len(g.Commands))
	for name := range g.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %-10s %s\n", name, g.Commands[name].Help))
	}
	sb.WriteString("  <number>   choose a menu option\n")
	sb.WriteString("  .commands  list Beastmaster dot commands\n")
	sb.WriteString("Type 'help <topic>' for more.")
	d.Send(sb.String())
}

func cmdDotCommands(g *Game, d *Descriptor) {
	if g.Module == nil {
		d.Send("No dot commands are available.")
		return
	}
	names := make([]string, 0)
	for name := range g.Module.Commands() {
		names = append(names, "."+name)
	}
	sort.Strings(names)
	d.Send("Dot commands: " + strings.Join(names, " "))
}

func cmdScore(g *Game, d *Descriptor, _ string) {
	c := g.online[d.Player].char
	d.Send(fmt.Sprintf("%s, level %d %s. Spells known: %d.", c.Name, c.Level, c.Class, len(c.Spells)))
}

func cmdTalk(g *Game, d *Descriptor, _ string) {
	o := g.online[d.Player]
	if g.Module == nil {
		d.Send(fmt.Sprintf("The %s ignores you.", BeastmasterName))
		return
	}
	target := g.master
	// Prefer a summoned Beastmaster standing beside the character.
	for _, n := range g.visibleNPCs(o) {
		if n.owner == o.char.GUID {
			target = n
		}
	}
	g.Module.ShowMainMenu(g.ctx, g.player(o), target)
}

func cmdPick(g *Game, d *Descriptor, n int) {
	o := g.online[d.Player]
	it, c, msg := o.menu.pick(n)
	if msg != "" {
		d.Send(msg)
		return
	}
	if g.Module == nil {
		o.menu.Close()
		return
	}
	DebugLog("gossip select: player %d sender %d action %d", o.char.GUID, it.Sender, it.Action)
	g.Module.GossipSelect(g.ctx, g.player(o), c, it.Sender, it.Action)
}

func cmdUse(g *Game, d *Descriptor, args string) {
	o := g.online[d.Player]
	item := strings.ToLower(strings.TrimSpace(args))
	if item == "" {
		d.Send("Use what?")
		return
	}
	if item != "whistle" && item != "beastmaster whistle" {
		d.Send("You don't have that.")
		return
	}
	p := g.player(o)
	if !p.HasItem(gamedb.WhistleItem) {
		d.Send("You don't have that.")
		return
	}
	if g.Module == nil || !g.Module.UseWhistle(g.ctx, p) {
		d.Send("Nothing happens.")
	}
}

func cmdPet(g *Game, d *Descriptor, _ string) {
	c := g.online[d.Player].char
	if c.Pet == nil {
		d.Send("You have no active pet.")
		return
	}
	d.Send(fmt.Sprintf("Your pet: %s (%s pet, creature %d, happiness %d).",
		c.Pet.Name, c.Pet.Type, c.Pet.Entry, c.Pet.Happiness))
}

func cmdAbandon(g *Game, d *Descriptor, _ string) {
	o := g.online[d.Player]
	if o.char.Pet == nil {
		d.Send("You have no active pet.")
		return
	}
	name := o.char.Pet.Name
	o.char.Pet = nil
	g.persist(o)
	d.Send(fmt.Sprintf("You abandon %s. It wanders off into the wild.", name))
}

func cmdStable(g *Game, d *Descriptor, _ string) {
	o := g.online[d.Player]
	c := o.char
	if c.Pet == nil {
		d.Send(stableListing(c))
		return
	}
	if len(c.Stable) >= MaxStableSlots {
		d.Send("Your stable is full.")
		return
	}
	name := c.Pet.Name
	c.Stable = append(c.Stable, *c.Pet)
	c.Pet = nil
	g.persist(o)
	d.Send(fmt.Sprintf("You stable %s.", name))
}

func cmdUnstable(g *Game, d *Descriptor, args string) {
	o := g.online[d.Player]
	c := o.char
	slot, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || slot < 1 || slot > len(c.Stable) {
		d.Send("Usage: unstable <slot>")
		return
	}
	taken := c.Stable[slot-1]
	if c.Pet != nil {
		// Swap the active pet into the freed slot.
		c.Stable[slot-1] = *c.Pet
		d.Send(fmt.Sprintf("You stable %s.", c.Pet.Name))
	} else {
		c.Stable = append(c.Stable[:slot-1], c.Stable[slot:]...)
	}
	c.Pet = &taken
	g.persist(o)
	d.Send(fmt.Sprintf("You take %s out of the stable.", taken.Name))
}

func cmdQuit(g *Game, d *Descriptor, _ string) {
	d.Send(g.quitText())
	g.Disconnect(d)
	d.Close()
}
