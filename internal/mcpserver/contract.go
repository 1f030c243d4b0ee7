package mcpserver

// DirectiveFormatContract describes the directive line grammar that LLM
// consumers should follow when adding tasks to vault files.
const DirectiveFormatContract = `# Dagaz Directive Format Contract

A task directive is one line of Markdown inside a vault file.

## Canonical form

` + "```" + `markdown
- [ ] Title text #tag @context +project 20260115 ~2h <!--todo:id=a1b2c3d4;v=1-->
- [x] Done task <!--todo:id=e5f6a7b8;v=1;done=2026-01-14-->
` + "```" + `

## Shorthand form (auto-converted on index)

` + "```" + `markdown
todo Buy milk tomorrow #errands !!
` + "```" + `

Shorthand lines start with the literal keyword ` + "`todo`" + `, carry no
checkbox, and are rewritten to canonical form with any natural-language
date converted to the compact 8-digit form before first parse.

## Recognized tokens (order-independent in source)

- ` + "`!` / `!!` / `!!!`" + ` - priority 1..3
- ` + "`!waiting` / `!waiting:<ref>` / `!blocked` / `!blocked:<ref>`" + ` - status
- ` + "`~<N>m` / `~<N>h` / `~<N>d`" + ` - time estimate (days are 8-hour workdays)
- ` + "`every <N>? <day|week|month|year>s?` / `every weekday` / `every mon tue ...`" + ` - recurrence
- a date: compact ` + "`YYYYMMDD`" + `, relative (` + "`today`, `tomorrow`, `next friday`, `in 3 weeks`" + `, ...), or month-day (` + "`Jan 5`" + `)
- ` + "`#tag`" + `, ` + "`@context`" + `, ` + "`+project`" + ` (first project wins)

## Rules

1. The remaining text after token extraction is the title; it must not be empty.
2. Never invent or modify the ` + "`<!--todo:...-->`" + ` identity comment; the system owns it.
3. File paths are relative to the vault root and use forward slashes.
4. Dates written by tools use the compact 8-digit form.
`
