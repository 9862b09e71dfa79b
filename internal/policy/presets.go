// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package policy holds the static keyword-override preset catalog (spec
// §4.3): human-labeled toggles that either force a BLOCK verdict outright
// (blocklist mode) or gate what the classifier is allowed to ALLOW
// (whitelist mode).
package policy

// Preset is one keyword-override toggle exposed to the admin UI.
type Preset struct {
	Key         string
	Label       string
	Description string
	PromptAddon string
}

// BlockPresets is the full block-profile catalog, reproduced from the
// original judge's POLICY_PRESETS table (spec.md names only the first
// three as examples; the rest are a supplemented feature, see
// SPEC_FULL.md §C.1).
var BlockPresets = []Preset{
	{
		Key:         "block_cocomelon",
		Label:       "Cocomelon",
		Description: "Always block Cocomelon songs/videos/channels.",
		PromptAddon: `ALWAYS BLOCK any content related to "cocomelon", including brand variants, channel names, thumbnails, and nursery-song compilations from this franchise.`,
	},
	{
		Key:         "block_nursery_factory",
		Label:       "Nursery Factory / Clone Kids Songs",
		Description: "Block Cocomelon-like nursery-rhyme factory channels and clone content.",
		PromptAddon: `ALWAYS BLOCK nursery-rhyme factory clone content, including repetitive toddler-song channels optimized for autoplay loops (for example: 'nursery rhymes', 'kids songs', 'for toddlers', and common clone channels).`,
	},
	{
		Key:         "block_kids_clickbait_animals",
		Label:       "Kids Clickbait Animal Roleplay",
		Description: "Block exploitative monkey/animal clickbait roleplay content.",
		PromptAddon: `ALWAYS BLOCK exploitative animal roleplay clickbait aimed at kids (for example monkey-baby toilet/pool prank loops, distress bait, or repetitive shock thumbnails).`,
	},
	{
		Key:         "block_skibidi",
		Label:       "Skibidi / Skibidi Toilet",
		Description: "Brainrot-style chaotic meme animations.",
		PromptAddon: `BLOCK if content strongly matches keywords like "skibidi" or "skibidi toilet".`,
	},
	{
		Key:         "block_huggy_wuggy",
		Label:       "Huggy Wuggy / Poppy Playtime",
		Description: "Toy-like horror monster content.",
		PromptAddon: `BLOCK if content matches "huggy wuggy", "poppy playtime", or close variants.`,
	},
	{
		Key:         "block_rainbow_friends",
		Label:       "Rainbow Friends",
		Description: "Roblox-like horror with jumpscares.",
		PromptAddon: `BLOCK if content matches "rainbow friends" or similar horror gameplay for young kids.`,
	},
	{
		Key:         "block_siren_momo",
		Label:       "Siren Head / Momo",
		Description: "Urban-legend horror characters.",
		PromptAddon: `BLOCK if content matches "siren head", "momo", or related horror urban legends.`,
	},
	{
		Key:         "block_prank",
		Label:       "Prank",
		Description: "Bullying, rude, staged conflict behavior.",
		PromptAddon: `BLOCK prank-focused content, especially humiliation, bullying, or aggressive behavior.`,
	},
	{
		Key:         "block_challenge",
		Label:       "Challenge",
		Description: "24-hour or dangerous challenge formats.",
		PromptAddon: `BLOCK risky challenge content, including "24 hour challenge" and physically dangerous stunts.`,
	},
	{
		Key:         "block_granny",
		Label:       "Granny",
		Description: "Horror game around violent granny character.",
		PromptAddon: `BLOCK content matching the horror game "granny" and related clones.`,
	},
	{
		Key:         "block_fnaf",
		Label:       "FNAF / Five Nights at Freddy's",
		Description: "Animatronic jumpscare horror.",
		PromptAddon: `BLOCK content matching "fnaf", "five nights at freddy", or animatronic jumpscare themes.`,
	},
	{
		Key:         "block_unboxing_eggs",
		Label:       "Unboxing / Surprise Egg",
		Description: "Pure consumerist toy-promo loops.",
		PromptAddon: `BLOCK repetitive toy unboxing and surprise egg promotion content aimed at children.`,
	},
	{
		Key:         "block_kill_die",
		Label:       "Kill / Killing / Die",
		Description: "Explicit violent title terms.",
		PromptAddon: `BLOCK when titles/context emphasize words like "kill", "killing", or "die".`,
	},
	{
		Key:         "block_blood_gore_horror",
		Label:       "Blood / Gore / Horror",
		Description: "Visual violence and gore terms.",
		PromptAddon: `BLOCK if blood, gore, or explicit horror violence is central to the content.`,
	},
	{
		Key:         "block_guns_weapons",
		Label:       "Guns / Shooting / Weapons",
		Description: "Firearms/weapon-centered content.",
		PromptAddon: `BLOCK if guns, shooting, or weapon-focused violence is a main theme.`,
	},
	{
		Key:         "block_elsagate_pregnant",
		Label:       "Pregnant (Elsagate)",
		Description: "Fetish-like Elsagate mashups.",
		PromptAddon: `BLOCK Elsagate-like content involving "pregnant" cartoon or superhero mashups.`,
	},
	{
		Key:         "block_elsagate_injection",
		Label:       "Injection / Doctor (Elsagate)",
		Description: "Needles/operations in disturbing kid animations.",
		PromptAddon: `BLOCK Elsagate-like content involving injections, needles, fake surgery, or forced doctor scenes.`,
	},
	{
		Key:         "block_suicide",
		Label:       "Suicide / Self-harm",
		Description: "Self-harm and suicide themes.",
		PromptAddon: `BLOCK any self-harm or suicide-related content immediately.`,
	},
}

// AllowPresets is the full allow-profile catalog (whitelist mode), from the
// original judge's ALLOW_POLICY_PRESETS table.
var AllowPresets = []Preset{
	{
		Key:         "allow_90s_cartoons",
		Label:       "90s Cartoons",
		Description: "Classic 1990s cartoons from major kids networks.",
		PromptAddon: "ALLOW classic 1990s cartoons and franchise content aimed at children.",
	},
	{
		Key:         "allow_00s_cartoons",
		Label:       "00s Cartoons",
		Description: "Classic 2000s cartoons from major kids networks.",
		PromptAddon: "ALLOW classic 2000s cartoons and age-appropriate animated series.",
	},
	{
		Key:         "allow_all_cartoons",
		Label:       "All Cartoons",
		Description: "Allow family-safe animation from trusted channels.",
		PromptAddon: "ALLOW family-safe cartoons and animated shorts from trusted channels.",
	},
	{
		Key:         "allow_disney_family",
		Label:       "Disney",
		Description: "Disney and Disney Junior family-safe content.",
		PromptAddon: "ALLOW family-safe Disney, Disney Junior, and Pixar-style kids content.",
	},
	{
		Key:         "allow_educational",
		Label:       "Educational",
		Description: "School-friendly educational content for kids.",
		PromptAddon: "ALLOW educational content for children: literacy, math, science, geography, and life skills.",
	},
	{
		Key:         "allow_religion",
		Label:       "Religion",
		Description: "Age-appropriate faith and values content.",
		PromptAddon: "ALLOW calm, age-appropriate faith and values content without fear-based messaging.",
	},
	{
		Key:         "allow_pbs_kids",
		Label:       "PBS Kids Classics",
		Description: "Trusted PBS-style educational shows.",
		PromptAddon: "ALLOW PBS Kids style educational programming and classic learning shows.",
	},
	{
		Key:         "allow_nickelodeon_90s",
		Label:       "Nickelodeon Classics",
		Description: "Nickelodeon classics popular in the 1990s/2000s.",
		PromptAddon: "ALLOW family-safe Nickelodeon classics suitable for young children.",
	},
	{
		Key:         "allow_cartoon_network_classics",
		Label:       "Cartoon Network Classics",
		Description: "Classic Cartoon Network shows and clips.",
		PromptAddon: "ALLOW classic Cartoon Network family-safe cartoon content.",
	},
	{
		Key:         "allow_disney_afternoon",
		Label:       "Disney Afternoon Classics",
		Description: "DuckTales/TaleSpin-like classic Disney afternoon content.",
		PromptAddon: "ALLOW Disney Afternoon style family-safe classics.",
	},
	{
		Key:         "allow_animal_documentaries",
		Label:       "Animal Documentaries",
		Description: "Calm, educational animal documentaries.",
		PromptAddon: "ALLOW educational animal documentaries with calm narration and no distress bait.",
	},
	{
		Key:         "allow_nature_science",
		Label:       "Nature & Science",
		Description: "Nature, space, and science explainers for kids.",
		PromptAddon: "ALLOW child-friendly nature, space, and science explainers.",
	},
	{
		Key:         "allow_music_rhythm",
		Label:       "Music & Rhythm",
		Description: "Age-appropriate music and rhythm learning.",
		PromptAddon: "ALLOW age-appropriate music, rhythm, and movement learning content.",
	},
	{
		Key:         "allow_arts_crafts",
		Label:       "Arts & Crafts",
		Description: "Drawing, craft, and making videos for children.",
		PromptAddon: "ALLOW arts and crafts tutorials suitable for children.",
	},
	{
		Key:         "allow_storytelling_books",
		Label:       "Storytelling & Books",
		Description: "Read-aloud and storytelling videos.",
		PromptAddon: "ALLOW calm storytelling, read-aloud, and children's books content.",
	},
	{
		Key:         "allow_family_game_shows",
		Label:       "Family Game Shows",
		Description: "Family-friendly quiz and game formats.",
		PromptAddon: "ALLOW child-friendly quiz and family game content without humiliation or risky challenges.",
	},
}

// BlockKeywords maps each block preset key to its lowercase match needles.
var BlockKeywords = map[string][]string{
	"block_cocomelon": {
		"cocomelon",
		"coco melon",
		"jj and friends",
		"cocomelon nederlands",
		"cocomelon songs for kids",
	},
	"block_nursery_factory": {
		"nursery rhymes",
		"kids songs",
		"for toddlers",
		"baby songs",
		"baby anna",
		"zoki nursery",
		"bebe zoki",
		"wheels on the bus",
	},
	"block_kids_clickbait_animals": {
		"monkey baby",
		"baby monkey",
		"bon bon",
		"animal ht",
		"toilet",
		"poop",
		"potty",
		"ducklings in the swimming pool",
	},
	"block_skibidi":        {"skibidi", "skibidi toilet"},
	"block_huggy_wuggy":    {"huggy wuggy", "poppy playtime"},
	"block_rainbow_friends": {"rainbow friends"},
	"block_siren_momo":     {"siren head", "momo"},
	"block_prank":          {"prank"},
	"block_challenge":      {"challenge", "24 hour challenge", "24h challenge"},
	"block_granny":         {"granny"},
	"block_fnaf":           {"fnaf", "five nights at freddy", "five nights at freddy's"},
	"block_unboxing_eggs":  {"unboxing", "surprise egg", "surprise eggs"},
	"block_kill_die":       {" kill ", "killing", " die ", "dies", "died"},
	"block_blood_gore_horror": {"blood", "bloed", "gore", "horror"},
	"block_guns_weapons":      {"gun", "shoot", "weapon", "wapen", "firearm"},
	"block_elsagate_pregnant": {"pregnant", "zwanger"},
	"block_elsagate_injection": {"injection", "spuit", "doctor", "needle", "surgery"},
	"block_suicide":            {"suicide", "zelfmoord", "self harm", "self-harm"},
}

// AllowKeywords maps each allow preset key to its lowercase match needles.
var AllowKeywords = map[string][]string{
	"allow_90s_cartoons": {"90s cartoon", "1990s cartoon", "rugrats", "hey arnold", "animaniacs"},
	"allow_00s_cartoons": {"2000s cartoon", "00s cartoon", "kim possible", "fairly oddparents", "avatar"},
	"allow_all_cartoons":  {"cartoon", "animation", "animated", "wb kids", "cartoon network"},
	"allow_disney_family": {"disney", "disney jr", "pixar", "mickey", "minnie", "spidey and his amazing friends"},
	"allow_educational":   {"educational", "learn", "science", "math", "reading", "school", "kids academy"},
	"allow_religion":       {"bible", "church", "faith", "christian kids", "quran", "torah", "sunday school"},
	"allow_pbs_kids":       {"pbs kids", "sesame street", "arthur", "magic school bus", "reading rainbow"},
	"allow_nickelodeon_90s": {"nickelodeon", "rugrats", "doug", "ren and stimpy", "catdog"},
	"allow_cartoon_network_classics": {"dexter's laboratory", "powerpuff girls", "johnny bravo", "ed edd n eddy"},
	"allow_disney_afternoon":         {"ducktales", "darkwing duck", "talespin", "goof troop"},
	"allow_animal_documentaries":     {"animal documentary", "wildlife", "national geographic kids", "nat geo kids"},
	"allow_nature_science":           {"space", "planet", "solar system", "nature", "experiment", "science for kids"},
	"allow_music_rhythm":             {"music for kids", "rhythm", "sing-along", "children's choir"},
	"allow_arts_crafts":              {"arts and crafts", "drawing for kids", "origami", "craft tutorial"},
	"allow_storytelling_books":       {"story time", "read aloud", "storybook", "bedtime story"},
	"allow_family_game_shows":        {"family quiz", "kids game show", "trivia for kids", "family challenge"},
}

// BlockDefaults are the block presets that are default-on (spec §4.3).
var BlockDefaults = map[string]bool{
	"block_cocomelon":               true,
	"block_nursery_factory":         true,
	"block_kids_clickbait_animals":  true,
}

// AllowDefaults are the allow presets that are default-on (spec §4.3).
var AllowDefaults = map[string]bool{
	"allow_90s_cartoons":  true,
	"allow_00s_cartoons":  true,
	"allow_disney_family": true,
	"allow_educational":   true,
}

// BlockLabels maps preset key to its human label, for decision reasons.
var BlockLabels = labelsOf(BlockPresets)

// AllowLabels maps preset key to its human label, for decision reasons.
var AllowLabels = labelsOf(AllowPresets)

func labelsOf(presets []Preset) map[string]string {
	out := make(map[string]string, len(presets))
	for _, p := range presets {
		out[p.Key] = p.Label
	}
	return out
}
